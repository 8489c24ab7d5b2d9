// Command nest reads entries out of nested archives.
package main

import "github.com/meigma/nest/cmd/nest/cmd"

func main() {
	cmd.Execute()
}
