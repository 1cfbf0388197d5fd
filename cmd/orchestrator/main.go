package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
)

func main() {
	defer glog.Flush()

	cmd := NewCommand("myloadbalancer")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
