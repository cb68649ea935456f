package commands

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
	"github.com/vitaminmoo/braceletctl/internal/publish"
	"github.com/vitaminmoo/braceletctl/internal/util"
)

// HistoryKindNames returns the accepted history kinds, sorted.
func HistoryKindNames() []string {
	var names []string
	for k := range api.HistoryKinds() {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// BatchPublisher takes a whole download at once. *publish.Publisher
// satisfies it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, batch []protocol.DeviceData) error
}

// HistoryOptions configures History.
type HistoryOptions struct {
	// JSON prints every chunk as a publish envelope.
	JSON      bool
	Publisher BatchPublisher
}

// History downloads one history store and prints it.
func History(ctx context.Context, c *api.Client, w io.Writer, kind string, q protocol.HistoryQuery, o HistoryOptions) error {
	op, ok := api.HistoryKinds()[kind]
	if !ok {
		return errors.Errorf("unknown history kind %q", kind)
	}
	chunks, err := c.History(ctx, op, q)
	if err != nil {
		return err
	}

	if o.Publisher != nil && len(chunks) > 0 {
		if err := o.Publisher.PublishBatch(ctx, chunks); err != nil {
			return errors.Wrapf(err, "publish %s history", kind)
		}
	}

	if o.JSON {
		envs := make([]publish.Envelope, 0, len(chunks))
		for _, ch := range chunks {
			envs = append(envs, publish.NewEnvelope(ch, timeNow()))
		}
		return PrintJSON(w, envs)
	}

	data := api.HistoryBytes(chunks)
	title(w, fmt.Sprintf("%s since %s", op, q.Since))
	field(w, "Chunks", len(chunks))
	field(w, "Bytes", len(data))
	if len(data) > 0 {
		fmt.Fprintln(w)
		util.HexDump(w, data)
	}
	if o.Publisher != nil {
		success(w, "Published %d chunks", len(chunks))
	}
	return nil
}

// DeleteHistory drops one history store, or all of them for kind "all".
func DeleteHistory(ctx context.Context, c *api.Client, w io.Writer, kind string) error {
	if kind == "all" {
		if err := c.ClearHistory(ctx); err != nil {
			return err
		}
		success(w, "All history cleared")
		return nil
	}
	op, ok := api.HistoryKinds()[kind]
	if !ok {
		return errors.Errorf("unknown history kind %q", kind)
	}
	if err := c.DeleteHistory(ctx, op); err != nil {
		return err
	}
	success(w, "%s history deleted", kind)
	return nil
}
