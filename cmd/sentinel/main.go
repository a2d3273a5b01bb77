// cmd/sentinel/main.go
package main

import "github.com/vitalmesh/sentinel/cmd"

func main() {
	cmd.Execute()
}
