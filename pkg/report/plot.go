package report

import (
	"fmt"
	"io"
	"iter"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/chatfang/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/chatlog"
)

// MinutesPerDay is the bucket count of a minute-of-day histogram.
const MinutesPerDay = 24 * 60

const (
	timemapSuffix     = "-timemap.html"
	serverGraphTitle  = "Server Time Graph"
	channelGraphTitle = "Channel Time Graph"
	fullZoomPct       = 100
)

// MinuteHistogram counts entries per minute of the day. With channel set,
// only entries from that channel are counted.
func MinuteHistogram(times iter.Seq[chatlog.TimeEntry], channel *uint64) [MinutesPerDay]uint64 {
	var buckets [MinutesPerDay]uint64

	for entry := range times {
		if channel != nil && entry.ChannelID != *channel {
			continue
		}

		buckets[entry.At.Hour()*60+entry.At.Minute()]++
	}

	return buckets
}

func minuteLabels() []string {
	labels := make([]string, MinutesPerDay)

	for i := range labels {
		labels[i] = fmt.Sprintf("%02d:%02d", i/60, i%60)
	}

	return labels
}

func lineData(buckets [MinutesPerDay]uint64) []opts.LineData {
	data := make([]opts.LineData, len(buckets))

	for i, n := range buckets {
		data[i] = opts.LineData{Value: n}
	}

	return data
}

func newTimemap(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
			Left:     "2%",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Top: "5px", Left: "40%"}),
		charts.WithGridOpts(opts.Grid{Top: "15%", Bottom: "15%", Left: "5%", Right: "5%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time of day (UTC)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Messages"}),
	)
	line.SetXAxis(minuteLabels())

	return line
}

// TimemapChart builds the messages-per-minute-of-day chart for one accumulator.
func TimemapChart(title string, a *author.Author) *charts.Line {
	line := newTimemap(title, fmt.Sprintf("%d messages", a.MessageCount))
	line.AddSeries("messages", lineData(MinuteHistogram(a.Times(), nil)))

	return line
}

// ChannelChart builds one minute-of-day series per channel, in channel id order.
func ChannelChart(title string, server *author.Author, channels map[uint64]string) *charts.Line {
	line := newTimemap(title, fmt.Sprintf("%d channels", len(channels)))

	for _, id := range mapx.SortedKeys(channels) {
		line.AddSeries(channels[id], lineData(MinuteHistogram(server.Times(), &id)))
	}

	return line
}

func renderChart(w io.Writer, line *charts.Line) error {
	err := line.Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
