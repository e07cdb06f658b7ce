package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func statsShow(cmd *cobra.Command, _ []string) error {
	resp, err := client.Get(apiAddr + "/v1/stats")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetch current dataplane metrics",
	RunE:  statsShow,
}
