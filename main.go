package main

import "github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/cmd"

func main() {
	cmd.Execute()
}
