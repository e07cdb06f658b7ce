package gk

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"gatekeeper/core/clock"
	"gatekeeper/core/metrics"
	"gatekeeper/core/netio"
)

func ipv4Frame(src, dst net.IP, proto byte, payloadLen int) []byte {
	eth := make([]byte, 14)
	binary.BigEndian.PutUint16(eth[12:14], netio.EtherTypeIPv4)

	totalLen := 20 + payloadLen
	ip := make([]byte, totalLen)
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(totalLen))
	ip[8] = 64
	ip[9] = proto
	copy(ip[12:16], src.To4())
	copy(ip[16:20], dst.To4())

	return append(eth, ip...)
}

func TestInstanceRunForwardsRequestPackets(t *testing.T) {
	src := netio.NewFakeSource(&netio.Packet{
		Iface: netio.IfaceFront,
		Data:  ipv4Frame(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 6, 8),
	})
	sink := &netio.FakeSink{}
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	in := NewInstance(Config{
		ShardIndex:    0,
		TableCapacity: 16,
		MailboxCap:    4,
		Clock:         clock.NewSimulated(0),
		Codec:         &netio.FakeCodec{},
		Source:        src,
		Sink:          sink,
		Metrics:       reg,
		Log:           logrus.NewEntry(logrus.New()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go in.Run(ctx, &wg)

	deadline := time.After(time.Second)
	for {
		if len(sink.Sent) > 0 {
			break
		}
		select {
		case <-deadline:
			cancel()
			wg.Wait()
			t.Fatalf("timed out waiting for packet to be forwarded")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	wg.Wait()
}
