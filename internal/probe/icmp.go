package probe

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const defaultPingTimeout = time.Second

// ICMPPinger sends one echo request per Ping call over a raw ICMP
// socket. Requires CAP_NET_RAW or root, which the device service unit
// grants.
type ICMPPinger struct {
	mu  sync.Mutex
	id  int
	seq uint16
}

func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{id: rand.Intn(0xffff)}
}

func (p *ICMPPinger) nextSeq() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return p.seq
}

func (p *ICMPPinger) Ping(ctx context.Context, target string) (time.Duration, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", target, err)
	}
	if len(addrs) == 0 {
		return 0, fmt.Errorf("resolve %q: no addresses", target)
	}
	ip := addrs[0].IP

	isV4 := ip.To4() != nil
	network := "ip4:icmp"
	proto := 1
	echoType := icmp.Type(ipv4.ICMPTypeEcho)
	replyType := icmp.Type(ipv4.ICMPTypeEchoReply)
	if !isV4 {
		network = "ip6:ipv6-icmp"
		proto = 58
		echoType = icmp.Type(ipv6.ICMPTypeEchoRequest)
		replyType = icmp.Type(ipv6.ICMPTypeEchoReply)
	}

	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		return 0, fmt.Errorf("icmp socket: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultPingTimeout)
	}

	seq := p.nextSeq()
	msg := icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  int(seq),
			Data: []byte("linkpulse"),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, &net.IPAddr{IP: ip}); err != nil {
		return 0, fmt.Errorf("send echo: %w", err)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return 0, ErrTimeout
			}
			return 0, fmt.Errorf("read reply: %w", err)
		}
		if ipAddr, ok := peer.(*net.IPAddr); ok && ipAddr.IP != nil && !ipAddr.IP.Equal(ip) {
			continue
		}
		parsed, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		if parsed.Type != replyType {
			continue
		}
		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		if echo.ID == p.id && echo.Seq == int(seq) {
			return time.Since(start), nil
		}
	}
}
