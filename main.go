/*
	Copyright 2024 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/f1log-recorder-go/cmd"

func main() {
	cmd.Execute()
}
