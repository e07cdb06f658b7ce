package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	policySrc      string
	policyDst      string
	policyProto    uint8
	policyState    string
	policyExpireS  int
	policyRateKB   int
	policyRenewMs  int
)

func policyPush(cmd *cobra.Command, _ []string) error {
	body := map[string]interface{}{
		"src_ip": policySrc,
		"dst_ip": policyDst,
		"proto":  policyProto,
		"state":  policyState,
	}
	switch policyState {
	case "granted":
		body["granted"] = map[string]int{
			"cap_expire_sec":  policyExpireS,
			"tx_rate_kb_sec":  policyRateKB,
			"next_renewal_ms": policyRenewMs,
			"renewal_step_ms": policyRenewMs,
		}
	case "declined":
		body["declined"] = map[string]int{"expire_sec": policyExpireS}
	default:
		return fmt.Errorf("state must be granted or declined")
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(apiAddr+"/v1/policy", "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "policy push: %s\n", resp.Status)
	return nil
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Push a policy command to the gatekeeper",
	RunE:  policyPush,
}

func init() {
	policyCmd.Flags().StringVar(&policySrc, "src", "", "source IP")
	policyCmd.Flags().StringVar(&policyDst, "dst", "", "destination IP")
	policyCmd.Flags().Uint8Var(&policyProto, "proto", 6, "IP protocol number")
	policyCmd.Flags().StringVar(&policyState, "state", "granted", "granted or declined")
	policyCmd.Flags().IntVar(&policyExpireS, "expire-sec", 60, "capability/punishment expiry in seconds")
	policyCmd.Flags().IntVar(&policyRateKB, "rate-kb-sec", 1024, "granted transmit rate in KB/sec")
	policyCmd.Flags().IntVar(&policyRenewMs, "renew-ms", 500, "capability renewal interval in milliseconds")
}
