// Command accounts runs the account service and its maintenance tasks.
package main

import "github.com/nfrund/accounts/cmd/accounts/cmd"

func main() {
	cmd.Execute()
}
