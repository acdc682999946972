// Copyright 2020 Dell Inc. or its subsidiaries.

package main

import (
	"fmt"
	"os"

	"github.com/dell-storage/vplex-host-libs/cmd/vplexctl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
