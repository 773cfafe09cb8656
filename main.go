package main

import "github.com/andresmejia3/emojicam/cmd"

func main() {
	cmd.Execute()
}
