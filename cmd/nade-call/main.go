// Command nade-call is a demo two-peer voice call host: it owns the
// PortAudio mic/speaker streams and a single net.Conn transport, feeding
// and pulling a session.Session's rings on a fixed tick. This is the
// "external collaborator" spec.md §1 explicitly keeps outside the core —
// the core never touches a sound card or a socket directly.
//
// Grounded on the teacher's own cmd/* binaries (flag parsing via
// spf13/pflag, a single main loop, charmbracelet/log for operator
// output); the PortAudio wiring is new, since the teacher's audio.go
// talks to the sound card via cgo rather than gordonklaus/portaudio,
// even though the latter is a teacher go.mod dependency.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/nadecore/nade/config"
	"github.com/nadecore/nade/session"
)

const (
	sampleRate    = 8000
	framesPerTick = 320 // one codec.FrameSamples worth, 40ms @ 8kHz
)

func main() {
	var (
		listenAddr = pflag.StringP("listen", "l", "", "listen address (server role); mutually exclusive with --connect")
		connectTo  = pflag.StringP("connect", "c", "", "peer address to dial (client role)")
		seedHex    = pflag.StringP("identity-seed", "i", "", "64 hex chars seeding this install's static identity; a fixed phrase is hashed if omitted")
		configPath = pflag.StringP("config", "f", "", "optional YAML config file (see config package)")
	)
	pflag.Parse()

	logger := log.Default()

	if (*listenAddr == "") == (*connectTo == "") {
		logger.Fatal("exactly one of --listen or --connect is required")
	}

	opts := session.DefaultOptions()
	if *configPath != "" {
		f, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("loading config", "err", err)
		}
		opts = f.Options()
	}

	seed := identitySeed(*seedHex)
	identity, err := session.NewIdentity(seed)
	if err != nil {
		logger.Fatal("creating identity", "err", err)
	}
	logger.Info("identity ready", "fingerprint", identity.Fingerprint())

	sess, err := session.New(identity, opts, logger)
	if err != nil {
		logger.Fatal("creating session", "err", err)
	}

	conn, role := dial(logger, *listenAddr, *connectTo)
	defer conn.Close()

	if role == session.RoleClient {
		err = sess.StartSessionClient(nil)
	} else {
		err = sess.StartSessionServer(nil)
	}
	if err != nil {
		logger.Fatal("starting session", "err", err)
	}

	if err := portaudio.Initialize(); err != nil {
		logger.Fatal("portaudio init", "err", err)
	}
	defer portaudio.Terminate()

	stream, err := portaudio.OpenDefaultStream(1, 1, float64(sampleRate), framesPerTick, func(in, out []int16) {
		if err := sess.FeedMic(in); err != nil {
			logger.Warn("feed_mic", "err", err)
		}
		n := sess.PullSpeaker(out)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
	})
	if err != nil {
		logger.Fatal("opening audio stream", "err", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		logger.Fatal("starting audio stream", "err", err)
	}
	defer stream.Stop()

	go readLoop(logger, conn, sess)
	writeLoop(logger, conn, sess)
}

// identitySeed turns a hex string into a 32-byte seed, or hashes a fixed
// placeholder phrase when none is supplied (demo convenience only; a
// real deployment always passes --identity-seed). A value that is not
// exactly 64 hex digits is hashed as a phrase instead.
func identitySeed(hexSeed string) [32]byte {
	var seed [32]byte
	if hexSeed == "" {
		sum := sha256.Sum256([]byte("nade-call demo identity"))
		return sum
	}
	raw, err := hex.DecodeString(hexSeed)
	if err != nil || len(raw) != len(seed) {
		sum := sha256.Sum256([]byte(hexSeed))
		return sum
	}
	copy(seed[:], raw)
	return seed
}

func dial(logger *log.Logger, listenAddr, connectTo string) (net.Conn, session.Role) {
	if connectTo != "" {
		conn, err := net.Dial("tcp", connectTo)
		if err != nil {
			logger.Fatal("dialing peer", "err", err)
		}
		return conn, session.RoleClient
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Fatal("listening", "err", err)
	}
	defer ln.Close()
	logger.Info("waiting for peer", "addr", ln.Addr())
	conn, err := ln.Accept()
	if err != nil {
		logger.Fatal("accepting peer", "err", err)
	}
	return conn, session.RoleServer
}

func readLoop(logger *log.Logger, conn net.Conn, sess *session.Session) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if err := sess.HandleIncoming(buf[:n]); err != nil {
				logger.Warn("handle_incoming", "err", err)
			}
		}
		if err != nil {
			logger.Info("peer connection closed", "err", err)
			os.Exit(0)
		}
	}
}

func writeLoop(logger *log.Logger, conn net.Conn, sess *session.Session) {
	buf := make([]byte, 4096)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if sess.ConsumeRemoteHangup() {
			logger.Info("peer hung up")
			return
		}
		n, err := sess.GenerateOutgoing(buf)
		if err != nil {
			logger.Warn("generate_outgoing", "err", err)
			continue
		}
		if n == 0 {
			continue
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			logger.Warn("writing to peer", "err", err)
			return
		}
	}
}
