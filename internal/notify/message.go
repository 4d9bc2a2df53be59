package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/eojeboda/internal/common"
	"github.com/i474232898/eojeboda/internal/weather"
)

// MessageTitle is the title of every reminder.
const MessageTitle = "어제보다"

// PushMessage is one reminder addressed to a device.
type PushMessage struct {
	ID        string            `json:"id"`
	DeviceUID string            `json:"deviceUid"`
	Token     string            `json:"token"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// MessageBody renders the reminder text for a temperature comparison.
func MessageBody(t weather.MetricComparison) string {
	delta := common.Round1(t.Delta)
	switch {
	case delta > 0:
		return fmt.Sprintf("오늘은(%.1f°C), 어제보다 살짝더 덥네요.(%s°C)", t.Current, common.FormatSigned(delta))
	case delta < 0:
		return fmt.Sprintf("오늘은(%.1f°C), 어제보다 살짝더 춥네요.(%s°C)", t.Current, common.FormatSigned(delta))
	default:
		return fmt.Sprintf("오늘은(%.1f°C), 어제와 기온이 비슷해요.(%s°C)", t.Current, common.FormatSigned(delta))
	}
}

// BuildMessage turns a comparison report into the reminder for sub.
func BuildMessage(sub Subscriber, report weather.Report, now time.Time) PushMessage {
	snap := report.Snapshot
	return PushMessage{
		ID:        uuid.NewString(),
		DeviceUID: sub.DeviceUID,
		Token:     sub.PushToken,
		Title:     MessageTitle,
		Body:      MessageBody(snap.Temperature),
		Data: map[string]string{
			"iconKey":  string(snap.IconKey),
			"iconUrl":  report.IconURL,
			"current":  strconv.FormatFloat(common.Round1(snap.Temperature.Current), 'f', 1, 64),
			"delta":    common.FormatSigned(snap.Temperature.Delta),
			"provider": report.Provider,
		},
		CreatedAt: now.UTC(),
	}
}
