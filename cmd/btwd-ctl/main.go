package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"btwd/internal/ipc"
)

func main() {
	cli.Parse()

	action := ipc.ActionStatus
	if cli.NArg() > 0 {
		action = cli.Arg(0)
	}

	resp, err := ipc.SendCommand(action)
	if err != nil {
		fmt.Fprintln(os.Stderr, "btwd not running:", err)
		os.Exit(1)
	}

	if !resp.Success {
		fmt.Fprintln(os.Stderr, "error:", resp.Error)
		os.Exit(1)
	}

	switch action {
	case ipc.ActionStatus:
		fmt.Println("state:", resp.Data[ipc.DataKeyState])
		if reqID, ok := resp.Data[ipc.DataKeyRequestID]; ok {
			fmt.Println("pending confirmation:", reqID)
		}
	default:
		fmt.Println("ok")
	}
}
