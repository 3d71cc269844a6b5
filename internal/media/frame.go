package media

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// FrameKind discriminates the message types carried on the media socket.
type FrameKind string

const (
	// KindAudioData carries a base64 payload of caller audio.
	KindAudioData FrameKind = "AudioData"
	// KindAudioMetadata announces the stream format; it carries no payload.
	KindAudioMetadata FrameKind = "AudioMetadata"
	// KindStopAudio marks an explicit end of the caller's turn.
	KindStopAudio FrameKind = "StopAudio"
)

// Frame is one decoded unit from the media socket.
type Frame struct {
	Kind        FrameKind
	Payload     []byte
	Timestamp   string
	Participant string
	Silent      bool
}

// wireFrame is the JSON envelope used on the socket in both directions.
type wireFrame struct {
	Kind      string     `json:"kind"`
	AudioData *audioData `json:"audioData,omitempty"`
}

type audioData struct {
	Data           string `json:"data"`
	Timestamp      string `json:"timestamp,omitempty"`
	ParticipantRaw string `json:"participantRawID,omitempty"`
	Silent         bool   `json:"silent"`
}

// DecodeFrame parses one text message from the socket. A decode error means
// the frame is malformed; callers log and skip it rather than failing the
// session.
func DecodeFrame(data []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if wf.Kind == "" {
		return Frame{}, fmt.Errorf("decode frame: missing kind")
	}

	frame := Frame{Kind: FrameKind(wf.Kind)}
	if frame.Kind != KindAudioData {
		return frame, nil
	}

	if wf.AudioData == nil {
		return Frame{}, fmt.Errorf("decode frame: AudioData without audioData body")
	}

	payload, err := base64.StdEncoding.DecodeString(wf.AudioData.Data)
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame payload: %w", err)
	}

	frame.Payload = payload
	frame.Timestamp = wf.AudioData.Timestamp
	frame.Participant = wf.AudioData.ParticipantRaw
	frame.Silent = wf.AudioData.Silent
	return frame, nil
}

// EncodeAudioFrame wraps synthesized audio in the wire envelope for the
// outbound direction.
func EncodeAudioFrame(payload []byte, timestamp string) ([]byte, error) {
	wf := wireFrame{
		Kind: string(KindAudioData),
		AudioData: &audioData{
			Data:      base64.StdEncoding.EncodeToString(payload),
			Timestamp: timestamp,
		},
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encode audio frame: %w", err)
	}
	return data, nil
}
