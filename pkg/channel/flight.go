package channel

import (
	"context"
	"crypto/tls"
	"errors"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// FlightTransport is the Arrow Flight surface used by [BulkChannel].
type FlightTransport interface {
	// Action runs a Flight action and returns the bodies of its results.
	Action(ctx context.Context, actionType string, body []byte) ([][]byte, error)

	// Get streams the batches of a ticket. The schema is returned even when
	// the stream has no batches. The caller releases the records.
	Get(ctx context.Context, ticket []byte) (*arrow.Schema, []arrow.Record, error)

	// Put uploads batches under a command descriptor.
	Put(ctx context.Context, descriptor []byte, records []arrow.Record) error

	Close() error
}

// FlightOptions configures the Flight connection.
type FlightOptions struct {
	Address            string
	Username           string
	Password           string
	Encrypted          bool
	InsecureSkipVerify bool
}

type flightTransport struct {
	client flight.Client
	md     metadata.MD
}

// DialFlight connects to a Flight server and performs the basic-token
// handshake when credentials are given. It returns the transport and the
// bearer token, if any.
func DialFlight(ctx context.Context, opts FlightOptions) (FlightTransport, string, error) {
	creds := insecure.NewCredentials()
	if opts.Encrypted {
		creds = credentials.NewTLS(&tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify})
	}

	client, err := flight.NewClientWithMiddleware(opts.Address, nil, nil, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, "", err
	}

	t := &flightTransport{client: client, md: metadata.MD{}}
	if opts.Username == "" {
		return t, "", nil
	}

	authCtx, err := client.AuthenticateBasicToken(ctx, opts.Username, opts.Password)
	if err != nil {
		_ = client.Close()
		return nil, "", err
	}
	var token string
	if md, ok := metadata.FromOutgoingContext(authCtx); ok {
		t.md = md
		if v := md.Get("authorization"); len(v) > 0 {
			token = v[0]
		}
	}
	return t, token, nil
}

func (t *flightTransport) ctx(ctx context.Context) context.Context {
	if len(t.md) == 0 {
		return ctx
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		return metadata.NewOutgoingContext(ctx, metadata.Join(md, t.md))
	}
	return metadata.NewOutgoingContext(ctx, t.md)
}

func (t *flightTransport) Action(ctx context.Context, actionType string, body []byte) ([][]byte, error) {
	stream, err := t.client.DoAction(t.ctx(ctx), &flight.Action{Type: actionType, Body: body})
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res.Body)
	}
}

func (t *flightTransport) Get(ctx context.Context, ticket []byte) (*arrow.Schema, []arrow.Record, error) {
	stream, err := t.client.DoGet(t.ctx(ctx), &flight.Ticket{Ticket: ticket})
	if err != nil {
		return nil, nil, err
	}
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Release()
	schema := reader.Schema()

	var out []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		for _, r := range out {
			r.Release()
		}
		return nil, nil, err
	}
	return schema, out, nil
}

func (t *flightTransport) Put(ctx context.Context, descriptor []byte, records []arrow.Record) error {
	if len(records) == 0 {
		return nil
	}
	stream, err := t.client.DoPut(t.ctx(ctx))
	if err != nil {
		return err
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(records[0].Schema()))
	w.SetFlightDescriptor(&flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: descriptor})
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (t *flightTransport) Close() error {
	return t.client.Close()
}
