package main

import "github.com/Tripp808/iyacare-app-sub001/cli"

func main() {
	cli.Execute()
}
