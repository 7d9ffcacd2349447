package main

import (
	"github.com/Laisky/topic-news/cmd"
)

func main() {
	cmd.Execute()
}
