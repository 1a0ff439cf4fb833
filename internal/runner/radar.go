package runner

import (
	"context"
	"strings"

	"signal_bot/internal/helper"

	"golang.org/x/sync/errgroup"
)

// Radar analyzes every asset of the enabled groups and renders the /price
// report. Failed assets get an error row.
func (r *Runner) Radar(ctx context.Context) string {
	groups := r.state.ActiveGroups()
	if len(groups) == 0 {
		return "⚠️ All groups are disabled. Use /toggle_group."
	}

	st := r.state.Get()
	type row struct {
		group string
		line  string
	}
	var rows []*row
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, group := range groups {
		for _, asset := range r.state.Group(group) {
			if st.AssetDisabled(asset) {
				continue
			}
			rw := &row{group: group}
			rows = append(rows, rw)
			g.Go(func() error {
				rw.line = r.quoteLine(gctx, asset)
				return nil
			})
		}
	}
	_ = g.Wait()

	var b strings.Builder
	b.WriteString("📡 MARKET RADAR (SPOT + FUTURES)\n")
	current := ""
	for _, rw := range rows {
		if rw.group != current {
			current = rw.group
			b.WriteString("\n" + strings.ReplaceAll(current, "_", " ") + "\n")
		}
		b.WriteString(rw.line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Quote is the single-asset variant of the radar with the rule breakdown.
func (r *Runner) Quote(ctx context.Context, asset string) (string, error) {
	an, err := r.Process(ctx, asset)
	if err != nil {
		return "", err
	}
	return helper.RadarLine(r.names(asset), an) + "\n\n" + helper.Debug(an), nil
}

func (r *Runner) quoteLine(ctx context.Context, asset string) string {
	an, err := r.Process(ctx, asset)
	if err != nil {
		return "• " + r.names(asset) + ": ❌ " + err.Error()
	}
	return helper.RadarLine(r.names(asset), an)
}
