// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/simforge/simserver/cmd/simserver"

func main() {
	cmd.Execute()
}
