// Command backtest replays the squeeze breakout scan over historical candles
// and prints the entry and exit markers.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"signal_bot/internal/helper"
	"signal_bot/internal/modules/binance/service"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type report struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"timeframe"`
	Bars      int               `json:"bars"`
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	Markers   []strategy.Marker `json:"markers"`
}

func main() {
	v, err := loadSettings(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, v, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "backtest:", err)
		os.Exit(1)
	}
}

// loadSettings merges flags, BACKTEST_* env vars and the strategy section of
// the bot config file, in that order of precedence.
func loadSettings(args []string) (*viper.Viper, error) {
	flags := pflag.NewFlagSet("backtest", pflag.ContinueOnError)
	flags.String("symbol", "BTCUSDT", "symbol to replay")
	flags.String("timeframe", "15m", "candle timeframe")
	flags.Int("limit", 1000, "number of candles")
	flags.String("format", "text", "output format: text or json")
	flags.String("config", "configs/values_local.yaml", "bot config file for strategy settings")
	flags.String("proxy", "", "http(s) or socks5 proxy for market data")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("BACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("exchange.timeout", 10*time.Second)
	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("backtest: config %s not loaded: %v", path, err)
		}
	}
	return v, nil
}

func run(ctx context.Context, v *viper.Viper, out io.Writer) error {
	format := strings.ToLower(v.GetString("format"))
	if format != "text" && format != "json" {
		return errors.Errorf("unknown format %q", format)
	}
	symbol := strings.ToUpper(v.GetString("symbol"))
	tf := helper.NormTF(v.GetString("timeframe"))

	proxy := v.GetString("proxy")
	if proxy == "" {
		proxy = v.GetString("exchange.data_proxy")
	}
	market, err := service.NewMarket(proxy, v.GetDuration("exchange.timeout"), 0)
	if err != nil {
		return errors.Wrap(err, "market client")
	}

	series := market.Candles(ctx, symbol, tf, v.GetInt("limit"))
	if series.Empty() {
		return errors.Errorf("no %s candles for %s", tf, symbol)
	}

	engine := strategy.NewEngine(params(v), strategy.NewSelector(nil, nil, "", 0), false)
	rep := report{
		Symbol:    symbol,
		Timeframe: tf,
		Bars:      len(series.Candles),
		From:      series.Candles[0].Time,
		To:        series.Candles[len(series.Candles)-1].Time,
		Markers:   engine.Squeeze().ScanBreakouts(series),
	}
	return render(out, rep, format)
}

func params(v *viper.Viper) strategy.Params {
	p := strategy.DefaultParams()
	if n := v.GetInt("strategy.hma_period"); n > 0 {
		p.HMAPeriod = n
	}
	if x := v.GetFloat64("strategy.adx_strong"); x > 0 {
		p.ADXStrong = x
	}
	if x := v.GetFloat64("strategy.volume_climax"); x > 0 {
		p.VolumeClimax = x
	}
	if n := v.GetInt("strategy.squeeze_lookback"); n > 0 {
		p.SqueezeLookback = n
	}
	return p
}

func render(w io.Writer, rep report, format string) error {
	if format == "json" {
		raw, err := sonic.MarshalIndent(rep, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode report")
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	fmt.Fprintf(w, "%s %s: %d bars %s .. %s\n", rep.Symbol, rep.Timeframe, rep.Bars,
		rep.From.UTC().Format(time.DateTime), rep.To.UTC().Format(time.DateTime))
	if len(rep.Markers) == 0 {
		_, err := fmt.Fprintln(w, "no breakouts")
		return err
	}
	buys := 0
	for _, m := range rep.Markers {
		if m.Side == strategy.MarkerBuy {
			buys++
		}
		fmt.Fprintf(w, "%s  %-4s  %-12s  %s\n",
			m.Time.UTC().Format(time.DateTime), strings.ToUpper(m.Side), helper.Price(m.Close), m.Reason)
	}
	_, err := fmt.Fprintf(w, "%d entries, %d exits\n", buys, len(rep.Markers)-buys)
	return err
}
