package main

import "github.com/bdgould/shiny-sub001/cmd"

func main() {
	cmd.Execute()
}
