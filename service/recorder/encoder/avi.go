package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// The baseline container: Motion-JPEG video plus 16-bit PCM audio in a
// RIFF/AVI file. Pure software, available on every platform, which makes
// it the guaranteed fallback for negotiation.

const aviMimeType = `video/x-msvideo`

const (
	aviFlagHasIndex  = 0x00000010
	aviIndexKeyframe = 0x00000010
)

type aviFactory struct{}

func (aviFactory) Capability() Capability {
	return Capability{
		Name:        `avi-mjpeg`,
		Container:   `avi`,
		MimeType:    aviMimeType,
		Audio:       true,
		Baseline:    true,
		Description: `Software Motion-JPEG + PCM in AVI`,
	}
}

func (aviFactory) Available() bool { return true }

func (aviFactory) Open(cfg Config) (Muxer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("avi: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("avi: invalid fps %d", cfg.FPS)
	}
	if cfg.HasAudio && (cfg.SampleRate <= 0 || cfg.Channels <= 0) {
		return nil, fmt.Errorf("avi: invalid audio format %dHz/%dch", cfg.SampleRate, cfg.Channels)
	}
	return &aviMuxer{cfg: cfg, quality: qualityForBitrate(cfg)}, nil
}

type aviMuxer struct {
	cfg     Config
	quality int

	videoFrames  uint32
	audioBytes   uint32
	maxChunkSize uint32
}

func (m *aviMuxer) Name() string     { return `avi-mjpeg` }
func (m *aviMuxer) MimeType() string { return aviMimeType }

// EncodeFrame produces one movi-ready '00dc' chunk holding a JPEG.
func (m *aviMuxer) EncodeFrame(img *image.RGBA) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("avi: nil frame")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: m.quality}); err != nil {
		return nil, fmt.Errorf("avi: jpeg encode failed: %w", err)
	}
	chunk := wrapChunk(`00dc`, buf.Bytes())
	m.videoFrames++
	if size := uint32(buf.Len()); size > m.maxChunkSize {
		m.maxChunkSize = size
	}
	return chunk, nil
}

// EncodeAudio produces one '01wb' chunk of 16-bit little-endian PCM.
func (m *aviMuxer) EncodeAudio(pcm []float32) ([]byte, error) {
	if !m.cfg.HasAudio || len(pcm) == 0 {
		return nil, nil
	}
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(s*32767)))
	}
	m.audioBytes += uint32(len(data))
	return wrapChunk(`01wb`, data), nil
}

// Finalize wraps the accumulated movi payload into a complete AVI file
// with headers and the idx1 index. A zero-frame payload still yields a
// structurally valid file.
func (m *aviMuxer) Finalize(payload []byte, duration time.Duration) ([]byte, error) {
	hdrl := m.buildHeaderList()
	idx := buildIndex(payload)

	var movi bytes.Buffer
	writeFourCC(&movi, `LIST`)
	putU32(&movi, uint32(4+len(payload)))
	writeFourCC(&movi, `movi`)
	movi.Write(payload)

	var body bytes.Buffer
	writeFourCC(&body, `AVI `)
	body.Write(hdrl)
	body.Write(movi.Bytes())
	body.Write(idx)

	var file bytes.Buffer
	writeFourCC(&file, `RIFF`)
	putU32(&file, uint32(body.Len()))
	file.Write(body.Bytes())
	return file.Bytes(), nil
}

func (m *aviMuxer) buildHeaderList() []byte {
	streams := uint32(1)
	if m.cfg.HasAudio {
		streams = 2
	}
	var avih bytes.Buffer
	putU32(&avih, uint32(1000000/m.cfg.FPS)) // microseconds per frame
	putU32(&avih, uint32(m.cfg.VideoBitrate/8))
	putU32(&avih, 0) // padding granularity
	putU32(&avih, aviFlagHasIndex)
	putU32(&avih, m.videoFrames)
	putU32(&avih, 0) // initial frames
	putU32(&avih, streams)
	putU32(&avih, m.maxChunkSize)
	putU32(&avih, uint32(m.cfg.Width))
	putU32(&avih, uint32(m.cfg.Height))
	for i := 0; i < 4; i++ {
		putU32(&avih, 0)
	}

	lists := [][]byte{wrapChunk(`avih`, avih.Bytes()), m.buildVideoStreamList()}
	if m.cfg.HasAudio {
		lists = append(lists, m.buildAudioStreamList())
	}

	var inner bytes.Buffer
	for _, b := range lists {
		inner.Write(b)
	}
	var hdrl bytes.Buffer
	writeFourCC(&hdrl, `LIST`)
	putU32(&hdrl, uint32(4+inner.Len()))
	writeFourCC(&hdrl, `hdrl`)
	hdrl.Write(inner.Bytes())
	return hdrl.Bytes()
}

func (m *aviMuxer) buildVideoStreamList() []byte {
	var strh bytes.Buffer
	writeFourCC(&strh, `vids`)
	writeFourCC(&strh, `MJPG`)
	putU32(&strh, 0) // flags
	putU16(&strh, 0) // priority
	putU16(&strh, 0) // language
	putU32(&strh, 0) // initial frames
	putU32(&strh, 1) // scale
	putU32(&strh, uint32(m.cfg.FPS))
	putU32(&strh, 0) // start
	putU32(&strh, m.videoFrames)
	putU32(&strh, m.maxChunkSize)
	putU32(&strh, ^uint32(0)) // quality: default
	putU32(&strh, 0)          // sample size: variable
	putU16(&strh, 0)
	putU16(&strh, 0)
	putU16(&strh, uint16(m.cfg.Width))
	putU16(&strh, uint16(m.cfg.Height))

	var strf bytes.Buffer
	putU32(&strf, 40) // BITMAPINFOHEADER size
	putU32(&strf, uint32(m.cfg.Width))
	putU32(&strf, uint32(m.cfg.Height))
	putU16(&strf, 1)  // planes
	putU16(&strf, 24) // bit count
	writeFourCC(&strf, `MJPG`)
	putU32(&strf, uint32(m.cfg.Width*m.cfg.Height*3))
	for i := 0; i < 4; i++ {
		putU32(&strf, 0)
	}
	return wrapStreamList(strh.Bytes(), strf.Bytes())
}

func (m *aviMuxer) buildAudioStreamList() []byte {
	blockAlign := uint32(m.cfg.Channels * 2)
	byteRate := uint32(m.cfg.SampleRate) * blockAlign

	var strh bytes.Buffer
	writeFourCC(&strh, `auds`)
	putU32(&strh, 0) // handler
	putU32(&strh, 0) // flags
	putU16(&strh, 0)
	putU16(&strh, 0)
	putU32(&strh, 0) // initial frames
	putU32(&strh, blockAlign)
	putU32(&strh, byteRate)
	putU32(&strh, 0) // start
	putU32(&strh, m.audioBytes/blockAlign)
	putU32(&strh, byteRate) // suggested buffer size
	putU32(&strh, ^uint32(0))
	putU32(&strh, blockAlign) // sample size
	putU16(&strh, 0)
	putU16(&strh, 0)
	putU16(&strh, 0)
	putU16(&strh, 0)

	var strf bytes.Buffer
	putU16(&strf, 1) // WAVE_FORMAT_PCM
	putU16(&strf, uint16(m.cfg.Channels))
	putU32(&strf, uint32(m.cfg.SampleRate))
	putU32(&strf, byteRate)
	putU16(&strf, uint16(blockAlign))
	putU16(&strf, 16) // bits per sample
	return wrapStreamList(strh.Bytes(), strf.Bytes())
}

func wrapStreamList(strh, strf []byte) []byte {
	var inner bytes.Buffer
	inner.Write(wrapChunk(`strh`, strh))
	inner.Write(wrapChunk(`strf`, strf))
	var list bytes.Buffer
	writeFourCC(&list, `LIST`)
	putU32(&list, uint32(4+inner.Len()))
	writeFourCC(&list, `strl`)
	list.Write(inner.Bytes())
	return list.Bytes()
}

// buildIndex scans the movi payload and emits the idx1 chunk. Offsets
// are relative to the position of the 'movi' fourcc, so the first chunk
// sits at offset 4.
func buildIndex(payload []byte) []byte {
	var entries bytes.Buffer
	pos := 0
	for pos+8 <= len(payload) {
		fourcc := payload[pos : pos+4]
		size := binary.LittleEndian.Uint32(payload[pos+4 : pos+8])
		entries.Write(fourcc)
		if bytes.Equal(fourcc, []byte(`00dc`)) {
			putU32(&entries, aviIndexKeyframe) // every MJPEG frame is a keyframe
		} else {
			putU32(&entries, 0)
		}
		putU32(&entries, uint32(4+pos))
		putU32(&entries, size)
		pos += 8 + int(size)
		if size%2 == 1 {
			pos++
		}
	}
	return wrapChunk(`idx1`, entries.Bytes())
}

// wrapChunk frames data as fourcc + size + data, padded to even length.
func wrapChunk(fourcc string, data []byte) []byte {
	var buf bytes.Buffer
	writeFourCC(&buf, fourcc)
	putU32(&buf, uint32(len(data)))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func writeFourCC(buf *bytes.Buffer, code string) {
	buf.WriteString(code)
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}
