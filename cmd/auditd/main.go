package main

import "github.com/JakeFAU/site-audit/cmd"

func main() {
	cmd.Execute()
}
