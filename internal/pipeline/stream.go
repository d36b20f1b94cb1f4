package pipeline

import (
	"context"
	"fmt"

	"github.com/kozaktomas/emotion-stream/internal/frame"
)

// StreamJPEGQuality is the quality of annotated frames sent back to stream clients.
const StreamJPEGQuality = 85

const maxCaptionLen = 60

// StreamReply is the outbound message for one stream-mode frame. Exactly one of
// JPEG and Message is set.
type StreamReply struct {
	JPEG    []byte
	Message *GameMessage
}

// ProcessGame runs one game-mode cycle and returns the message to publish.
func (s *Session) ProcessGame(ctx context.Context, payload []byte) GameMessage {
	return s.Process(ctx, payload).Result.GameMessage()
}

// ProcessStream runs one stream-mode cycle. Every decoded frame is answered
// with the annotated JPEG; a failed cycle has its error captioned in the top
// left corner. Only frames that could not be decoded get the JSON result.
func (s *Session) ProcessStream(ctx context.Context, payload []byte) StreamReply {
	cycle := s.Process(ctx, payload)
	if cycle.Frame == nil {
		msg := cycle.Result.GameMessage()
		return StreamReply{Message: &msg}
	}
	if cycle.Result.Error != "" {
		cycle.Faces = append(cycle.Faces, errorCaption(cycle.Result.Error))
	}

	data, err := RenderFrame(cycle)
	if err != nil {
		s.stats.Errors++
		msg := cycle.Result.WithError(err).GameMessage()
		return StreamReply{Message: &msg}
	}
	return StreamReply{JPEG: data}
}

// errorCaption is a box-less annotation that puts text at the frame origin.
func errorCaption(msg string) frame.Annotation {
	if len(msg) > maxCaptionLen {
		msg = msg[:maxCaptionLen-3] + "..."
	}
	return frame.Annotation{Text: "Error: " + msg}
}

// RenderFrame draws the cycle's faces on its frame and encodes it as JPEG.
func RenderFrame(cycle Cycle) ([]byte, error) {
	if cycle.Frame == nil {
		return nil, fmt.Errorf("cycle has no frame to render")
	}
	return frame.EncodeJPEG(frame.Annotate(cycle.Frame, cycle.Faces), StreamJPEGQuality)
}
