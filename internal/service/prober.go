package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tessera/internal/config"
)

// Prober checks that the service answers on port.
type Prober interface {
	Probe(ctx context.Context, port string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, port string) error

func (f ProberFunc) Probe(ctx context.Context, port string) error { return f(ctx, port) }

// NewProber returns the prober for a service.probe kind.
func NewProber(kind string) Prober {
	if kind == config.ProbeTCP {
		return TCPProber{}
	}
	return MongoProber{}
}

// MongoProber connects a driver client and pings the primary.
type MongoProber struct{}

func (MongoProber) Probe(ctx context.Context, port string) error {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	opts := options.Client().
		ApplyURI(fmt.Sprintf("mongodb://localhost:%s", port)).
		SetDirect(true).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// TCPProber only confirms the port accepts a connection.
type TCPProber struct{}

func (TCPProber) Probe(ctx context.Context, port string) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort("localhost", port))
	if err != nil {
		return err
	}
	return conn.Close()
}
