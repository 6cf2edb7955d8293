// SPDX-License-Identifier: MPL-2.0

// Command relaunch keeps an application up to date and starts it.
package main

import cmd "github.com/relaunch/relaunch/cmd/relaunch"

func main() {
	cmd.Execute()
}
