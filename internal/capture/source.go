package capture

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"

	"firestige.xyz/argus/internal/config"
)

// Source is an AF_PACKET ring-buffer capture handle.
type Source struct {
	handle *afpacket.TPacket
	device string
}

// NewSource opens an AF_PACKET handle on the configured interface and
// installs the given BPF filter expression.
func NewSource(cfg config.CaptureConfig, filter string) (*Source, error) {
	frameSize, blockSize, numBlocks, err := ringSizes(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(time.Duration(cfg.TimeoutMs)*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open AF_PACKET handle on %s: %w", cfg.Interface, err)
	}

	if filter != "" {
		raw, err := compileBPF(filter, cfg.SnapLen)
		if err != nil {
			handle.Close()
			return nil, err
		}
		if err := handle.SetBPF(raw); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to install BPF filter: %w", err)
		}
	}

	return &Source{handle: handle, device: cfg.Interface}, nil
}

// ReadPacketData implements gopacket.PacketDataSource.
func (s *Source) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return s.handle.ReadPacketData()
}

// Close releases the ring buffer.
func (s *Source) Close() {
	s.handle.Close()
}

// ringSizes derives AF_PACKET ring geometry from the requested buffer
// budget. Frame size is rounded up to a multiple of the page size so the
// kernel accepts the ring configuration.
func ringSizes(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}

	frameSize = pageSize
	for frameSize < snapLen {
		frameSize += pageSize
	}

	// 128 frames per block keeps blocks well under the kernel's limit
	// while amortizing poll wakeups.
	blockSize = frameSize * 128
	numBlocks = (bufferSizeMB * 1024 * 1024) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}
