package audio

import (
	"encoding/binary"

	"layeh.com/gopus"
)

// Opus in an Ogg container always decodes at 48 kHz; the OpusHead input
// sample rate is informational only.
const (
	opusDecodeRate = 48000

	// opusMaxFrameSize is the largest frame Opus permits: 120 ms at 48 kHz.
	opusMaxFrameSize = 5760
)

// oggPage is one parsed Ogg page: the header-type flag plus the raw lacing
// values and payload needed to reassemble packets.
type oggPage struct {
	headerType byte
	laces      []byte
	payload    []byte
}

// parseOggPages splits data into Ogg pages. CRC checksums are not verified;
// a recording corrupted in transit fails at the Opus decode stage instead.
func parseOggPages(data []byte) ([]oggPage, error) {
	var pages []oggPage
	offset := 0
	for offset < len(data) {
		if offset+27 > len(data) || string(data[offset:offset+4]) != "OggS" {
			return nil, &DecodeError{Detail: "malformed Ogg page header"}
		}
		nsegs := int(data[offset+26])
		tableEnd := offset + 27 + nsegs
		if tableEnd > len(data) {
			return nil, &DecodeError{Detail: "truncated Ogg segment table"}
		}
		laces := data[offset+27 : tableEnd]
		payloadLen := 0
		for _, l := range laces {
			payloadLen += int(l)
		}
		if tableEnd+payloadLen > len(data) {
			return nil, &DecodeError{Detail: "truncated Ogg page payload"}
		}
		pages = append(pages, oggPage{
			headerType: data[offset+5],
			laces:      laces,
			payload:    data[tableEnd : tableEnd+payloadLen],
		})
		offset = tableEnd + payloadLen
	}
	if len(pages) == 0 {
		return nil, &DecodeError{Detail: "empty Ogg stream"}
	}
	return pages, nil
}

// oggPackets reassembles logical packets from a page sequence. A lacing
// value below 255 terminates the current packet; a packet may span pages
// via the continuation flag.
func oggPackets(pages []oggPage) [][]byte {
	var packets [][]byte
	var current []byte
	for _, page := range pages {
		pos := 0
		for _, lace := range page.laces {
			current = append(current, page.payload[pos:pos+int(lace)]...)
			pos += int(lace)
			if lace < 255 {
				packets = append(packets, current)
				current = nil
			}
		}
	}
	// A trailing unterminated segment run is dropped: it belongs to a
	// packet whose final page never arrived.
	return packets
}

// opusHead is the identification header from the first packet of an Ogg
// Opus stream.
type opusHead struct {
	channels int
	preSkip  int
}

func parseOpusHead(pkt []byte) (opusHead, error) {
	if len(pkt) < 19 || string(pkt[0:8]) != "OpusHead" {
		return opusHead{}, &DecodeError{Detail: "missing OpusHead packet"}
	}
	head := opusHead{
		channels: int(pkt[9]),
		preSkip:  int(binary.LittleEndian.Uint16(pkt[10:12])),
	}
	if head.channels < 1 || head.channels > 2 {
		return opusHead{}, &DecodeError{Detail: "unsupported Opus channel count"}
	}
	return head, nil
}

// decodeOggOpus decodes an Ogg Opus recording into normalized first-channel
// floating-point samples at 48 kHz.
func decodeOggOpus(data []byte) (decodedAudio, error) {
	pages, err := parseOggPages(data)
	if err != nil {
		return decodedAudio{}, err
	}
	packets := oggPackets(pages)
	if len(packets) < 2 {
		return decodedAudio{}, &DecodeError{Detail: "Ogg stream has no audio packets"}
	}

	head, err := parseOpusHead(packets[0])
	if err != nil {
		return decodedAudio{}, err
	}
	// packets[1] is OpusTags; audio starts at packets[2].

	dec, err := gopus.NewDecoder(opusDecodeRate, head.channels)
	if err != nil {
		return decodedAudio{}, &DecodeError{Detail: "create opus decoder", Err: err}
	}

	var samples []float32
	for _, pkt := range packets[2:] {
		if len(pkt) == 0 {
			continue
		}
		pcm, err := dec.Decode(pkt, opusMaxFrameSize, false)
		if err != nil {
			return decodedAudio{}, &DecodeError{Detail: "opus packet decode", Err: err}
		}
		// Keep channel 0 of the interleaved output.
		for i := 0; i < len(pcm); i += head.channels {
			samples = append(samples, int16ToFloat(pcm[i]))
		}
	}

	// Discard the encoder priming samples declared in OpusHead.
	if head.preSkip > 0 && head.preSkip < len(samples) {
		samples = samples[head.preSkip:]
	}

	return decodedAudio{samples: samples, sampleRate: opusDecodeRate}, nil
}
