package main

import "crm_automation/presentation/cli"

func main() {
	cli.Execute()
}
