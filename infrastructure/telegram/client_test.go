package telegram

import (
	"context"
	"io"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"mega-relay/domain"
)

func TestProgressReader_ReportsFractions(t *testing.T) {
	req := require.New(t)

	data := strings.Repeat("x", 100)
	var fractions []float64
	reader := &progressReader{
		ctx:    context.Background(),
		r:      strings.NewReader(data),
		total:  int64(len(data)),
		report: func(f float64) { fractions = append(fractions, f) },
	}

	// Drive Read directly: copy helpers may hand the reader to a
	// WriterTo/ReaderFrom fast path with a buffer of their own choosing.
	buf := make([]byte, 25)
	for {
		_, err := reader.Read(buf)
		if err == io.EOF {
			break
		}
		req.NoError(err)
	}
	req.Equal([]float64{0.25, 0.5, 0.75, 1}, fractions)
}

func TestProgressReader_StopsOnCanceledContext(t *testing.T) {
	req := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &progressReader{ctx: ctx, r: strings.NewReader("data"), total: 4}
	_, err := reader.Read(make([]byte, 4))
	req.ErrorIs(err, context.Canceled)
}

func TestMediaConfig_MethodFollowsClass(t *testing.T) {
	req := require.New(t)
	client := &Client{}
	file := tgbotapi.FilePath("/tmp/x")

	upload := func(class domain.MediaClass) domain.FileUpload {
		return domain.FileUpload{ChatID: 1, Class: class, Caption: "c"}
	}

	req.IsType(tgbotapi.VideoConfig{}, client.mediaConfig(upload(domain.MediaVideo), file))
	req.IsType(tgbotapi.PhotoConfig{}, client.mediaConfig(upload(domain.MediaImage), file))
	req.IsType(tgbotapi.AudioConfig{}, client.mediaConfig(upload(domain.MediaAudio), file))
	req.IsType(tgbotapi.DocumentConfig{}, client.mediaConfig(upload(domain.MediaDocument), file))
}
