package main

import "robot_control/internal/cli"

func main() {
	cli.Execute()
}
