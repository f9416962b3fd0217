package main

import "github.com/kholmgren/faas-gateway-deployer/cmd"

func main() {
	cmd.Execute()
}
