// Package visual renders chart reports: an echarts page with the price
// kline, EMA overlays, volume and the backtest equity curve, optionally
// screenshotted to PNG through headless Chrome.
package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"shadowtrade/internal/analysis/indicator"
	"shadowtrade/internal/backtest"
	"shadowtrade/internal/market"
)

// ImageResult is a rendered PNG plus metadata for the API response.
type ImageResult struct {
	Bytes       []byte `json:"-"`
	Base64      string `json:"base64"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

func (r *ImageResult) DataURI() string {
	if r == nil {
		return ""
	}
	if r.Base64 == "" && len(r.Bytes) > 0 {
		r.Base64 = base64.StdEncoding.EncodeToString(r.Bytes)
	}
	if r.Base64 == "" {
		return ""
	}
	return "data:image/png;base64," + r.Base64
}

// ChartInput carries everything one report page needs. Equity and
// Trades are optional; without them only the market panels render.
type ChartInput struct {
	Symbol    string
	Timeframe string
	Candles   []market.Candle
	Report    indicator.Report
	Equity    []backtest.EquityPoint
	Trades    []backtest.Trade
}

const (
	colorBackground = "#0b1020"
	colorTextMain   = "#e5e9f0"
	colorTextDim    = "#94a3b8"
	colorBull       = "#4ade80"
	colorBear       = "#fb7185"
	colorEmaFast    = "#60a5fa"
	colorEmaMid     = "#facc15"
	colorEmaSlow    = "#e879f9"
	colorEquity     = "#38bdf8"

	chartWidthPx   = 1600
	klineHeightPx  = 560
	volumeHeightPx = 240
	equityHeightPx = 320
)

// RenderHTML builds the full report page as standalone HTML.
func RenderHTML(input ChartInput) ([]byte, string, error) {
	if input.Symbol == "" {
		return nil, "", fmt.Errorf("visual: symbol required")
	}
	if len(input.Candles) == 0 {
		return nil, "", market.NoDataErrorf("visual: no candles for %s@%s", input.Symbol, input.Timeframe)
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	xAxis := buildXAxis(input.Candles)
	page.AddCharts(buildKlineChart(input, xAxis))
	page.AddCharts(buildVolumeChart(input, xAxis))
	if len(input.Equity) > 0 {
		page.AddCharts(buildEquityChart(input))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, "", err
	}
	desc := describe(input)
	return buf.Bytes(), desc, nil
}

// RenderPNG renders the page and screenshots it in headless Chrome.
func RenderPNG(ctx context.Context, input ChartInput) (ImageResult, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return ImageResult{}, err
	}
	html, desc, err := RenderHTML(input)
	if err != nil {
		return ImageResult{}, err
	}
	height := klineHeightPx + volumeHeightPx
	if len(input.Equity) > 0 {
		height += equityHeightPx
	}
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, height)
	if err != nil {
		return ImageResult{}, err
	}
	return ImageResult{
		Bytes:       png,
		Base64:      base64.StdEncoding.EncodeToString(png),
		Filename:    fmt.Sprintf("%s_%s_report.png", strings.ToLower(input.Symbol), input.Timeframe),
		Description: desc,
	}, nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable probes for a working Chrome once per process.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		parent, cancel := chromedp.NewContext(ctx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func describe(input ChartInput) string {
	parts := []string{fmt.Sprintf("%s %s, %d bars", strings.ToUpper(input.Symbol), input.Timeframe, len(input.Candles))}
	if rsi, ok := input.Report.Values["rsi"]; ok {
		parts = append(parts, fmt.Sprintf("RSI %.1f (%s)", rsi.Latest, rsi.State))
	}
	if macd, ok := input.Report.Values["macd"]; ok {
		parts = append(parts, fmt.Sprintf("MACD %s", macd.State))
	}
	if n := len(input.Trades); n > 0 {
		parts = append(parts, fmt.Sprintf("%d fills", n))
	}
	return strings.Join(parts, " | ")
}

func buildKlineChart(input ChartInput, xAxis []string) *charts.Kline {
	minPrice, maxPrice := priceBounds(input.Candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	subtitle := ""
	if rsi, ok := input.Report.Values["rsi"]; ok {
		subtitle = fmt.Sprintf("RSI %.1f | MACD %s", rsi.Latest, input.Report.Values["macd"].State)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(input.Symbol), input.Timeframe),
			Subtitle:      subtitle,
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextMain, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextDim},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextMain}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	data := make([]opts.KlineData, 0, len(input.Candles))
	for _, c := range input.Candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)

	if ema := buildEMAOverlay(input, len(input.Candles)); ema != nil {
		ema.SetXAxis(xAxis)
		kline.Overlap(ema)
	}
	return kline
}

func buildEMAOverlay(input ChartInput, length int) *charts.Line {
	fast, okFast := input.Report.Values["ema_fast"]
	mid, okMid := input.Report.Values["ema_mid"]
	slow, okSlow := input.Report.Values["ema_slow"]
	if !okFast && !okMid && !okSlow {
		return nil
	}
	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	if okFast {
		line.AddSeries(legendLabel(fast.Note, "EMA Fast"), toLineData(fast.Series, length),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaFast, Width: 2}))
	}
	if okMid {
		line.AddSeries(legendLabel(mid.Note, "EMA Mid"), toLineData(mid.Series, length),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaMid, Width: 2}))
	}
	if okSlow {
		line.AddSeries(legendLabel(slow.Note, "EMA Slow"), toLineData(slow.Series, length),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaSlow, Width: 2}))
	}
	return line
}

func legendLabel(note, fallback string) string {
	fields := strings.Fields(strings.TrimSpace(note))
	if len(fields) > 0 && fields[0] != "" {
		return fields[0]
	}
	return fallback
}

func buildVolumeChart(input ChartInput, xAxis []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextMain}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(input.Candles))
	for i, c := range input.Candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value:     c.Volume,
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

// buildEquityChart plots the backtest equity curve with fill markers.
func buildEquityChart(input ChartInput) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", equityHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Equity Curve", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextMain}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextDim}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Color: colorTextDim}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextDim, Opacity: opts.Float(0.2)}},
		}),
	)

	x := make([]string, len(input.Equity))
	data := make([]opts.LineData, len(input.Equity))
	fills := make(map[string]backtest.Side, len(input.Trades))
	for _, tr := range input.Trades {
		fills[tr.Date.UTC().Format("01-02 15:04")] = tr.Side
	}
	for i, pt := range input.Equity {
		label := pt.Date.UTC().Format("01-02 15:04")
		x[i] = label
		data[i] = opts.LineData{Value: round(pt.Equity, 2)}
		if side, ok := fills[label]; ok {
			symbol := "triangle"
			if side == backtest.SideSell {
				symbol = "arrow"
			}
			data[i] = opts.LineData{
				Value:      round(pt.Equity, 2),
				Symbol:     symbol,
				SymbolSize: 14,
			}
		}
	}
	line.SetXAxis(x)
	line.AddSeries("Equity", data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.12)}),
	)
	return line
}

func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		v := series[i]
		if math.IsNaN(v) {
			line[offset+i] = opts.LineData{Value: nil}
		} else {
			line[offset+i] = opts.LineData{Value: round(v, 4)}
		}
	}
	return line
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.CloseTime).UTC().Format("01-02 15:04")
	}
	return x
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	minVal = candles[0].Low
	maxVal = candles[0].High
	for _, c := range candles {
		if c.Low < minVal {
			minVal = c.Low
		}
		if c.High > maxVal {
			maxVal = c.High
		}
	}
	return minVal, maxVal
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
