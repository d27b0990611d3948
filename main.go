package main

import "github.com/theirongolddev/books/cmd"

func main() {
	cmd.Execute()
}
