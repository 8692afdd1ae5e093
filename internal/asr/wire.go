// Package asr speaks the streaming speech-recognition protocol: a
// bidirectional gRPC stream that carries PCM audio up and transcript
// hypotheses back.
//
// Messages are well-known protobuf types so no generated stubs are needed.
// Audio travels as google.protobuf.BytesValue; each hypothesis is a
// google.protobuf.Struct with "transcript" (string) and "is_final" (bool).
// Stream parameters ride in request metadata.
package asr

import (
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName      = "meddoc.speech.v1.Recognizer"
	streamName       = "StreamingRecognize"
	streamMethod     = "/" + serviceName + "/" + streamName
	mdLanguage       = "x-meddoc-language"
	mdSampleRate     = "x-meddoc-sample-rate"
	fieldTranscript  = "transcript"
	fieldIsFinal     = "is_final"
	defaultRateHertz = 16000
)

var streamDesc = grpc.StreamDesc{
	StreamName:    streamName,
	ServerStreams: true,
	ClientStreams: true,
}

// StreamConfig describes the audio a client is about to send.
type StreamConfig struct {
	LanguageCode    string
	SampleRateHertz int
}

func (c StreamConfig) withDefaults() StreamConfig {
	if strings.TrimSpace(c.LanguageCode) == "" {
		c.LanguageCode = "en-US"
	}
	if c.SampleRateHertz <= 0 {
		c.SampleRateHertz = defaultRateHertz
	}
	return c
}

func (c StreamConfig) metadata() metadata.MD {
	return metadata.Pairs(
		mdLanguage, c.LanguageCode,
		mdSampleRate, strconv.Itoa(c.SampleRateHertz),
	)
}

func streamConfigFromMD(md metadata.MD) StreamConfig {
	var cfg StreamConfig
	if v := md.Get(mdLanguage); len(v) > 0 {
		cfg.LanguageCode = v[0]
	}
	if v := md.Get(mdSampleRate); len(v) > 0 {
		cfg.SampleRateHertz, _ = strconv.Atoi(v[0])
	}
	return cfg.withDefaults()
}

// Hypothesis is one recognizer result for the audio received so far.
type Hypothesis struct {
	Transcript string
	Final      bool
}

func (h Hypothesis) toStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTranscript: structpb.NewStringValue(h.Transcript),
		fieldIsFinal:    structpb.NewBoolValue(h.Final),
	}}
}

func hypothesisFromStruct(s *structpb.Struct) Hypothesis {
	fields := s.GetFields()
	return Hypothesis{
		Transcript: fields[fieldTranscript].GetStringValue(),
		Final:      fields[fieldIsFinal].GetBoolValue(),
	}
}
