// Command querychat is a chat client for a natural-language data query backend.
package main

import "github.com/diogo/querychat/internal/commands"

func main() {
	commands.Execute()
}
