package main

import "github.com/waplink/waplink/cmd"

func main() {
	cmd.Execute()
}
