package extract_test

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/digitorus/pixelmark/embed"
	"github.com/digitorus/pixelmark/extract"
	"github.com/digitorus/pixelmark/internal/testimg"
	"github.com/digitorus/pixelmark/payload"
	"github.com/digitorus/pixelmark/seal"
)

func scenarioPayload() payload.Payload {
	sum := sha256.Sum256([]byte("user-42"))
	var fp [8]byte
	copy(fp[:], sum[:8])
	return payload.Payload{
		Timestamp:   1700000000,
		IPv4:        [4]byte{192, 168, 1, 1},
		Fingerprint: fp,
		Platform:    3,
	}
}

func mark(t testing.TB, pix []byte, width, height int, p payload.Payload, seed string, opts ...embed.Option) []byte {
	t.Helper()
	out, err := embed.Embed(pix, width, height, p, seed, opts...)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	return out
}

func TestScenario(t *testing.T) {
	const seed = "img-001"
	p := scenarioPayload()
	marked := mark(t, testimg.Smooth(42, 64, 64), 64, 64, p, seed)

	r, ok := extract.Extract(marked, 64, 64, seed)
	if !ok {
		t.Fatal("Extract() found no payload")
	}
	if r.Payload != p {
		t.Errorf("payload = %v, want %v", r.Payload, p)
	}
	if r.Payload.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d", r.Payload.Timestamp)
	}
	if got := r.Payload.IP().String(); got != "192.168.1.1" {
		t.Errorf("ip = %s", got)
	}
	if r.Payload.Platform != 3 {
		t.Errorf("platform = %d", r.Payload.Platform)
	}
	if r.Confidence <= extract.DetectionThreshold {
		t.Errorf("confidence = %.3f, want > %.1f", r.Confidence, extract.DetectionThreshold)
	}
	if !extract.HasSignature(marked, 64, 64, seed) {
		t.Error("HasSignature() = false")
	}
}

// TestRoundTrip uses smooth images. Per-pixel white noise drowns a strength 8
// mark at low redundancy; TestUniformNoiseImage covers that case.
func TestRoundTrip(t *testing.T) {
	sizes := []struct{ w, h int }{
		{64, 64},
		{128, 96},
		{100, 76},
		{256, 256},
	}
	for i, sz := range sizes {
		for img := uint64(0); img < 4; img++ {
			name := fmt.Sprintf("%dx%d/%d", sz.w, sz.h, img)
			t.Run(name, func(t *testing.T) {
				p := payload.Payload{
					Timestamp:   uint32(1600000000 + i*1000 + int(img)),
					IPv4:        [4]byte{10, byte(i), byte(img), 7},
					Fingerprint: payload.Fingerprint(name),
					Platform:    uint8(img),
				}
				seed := "seed-" + name
				pix := testimg.Smooth(img*31+uint64(i), sz.w, sz.h)
				marked := mark(t, pix, sz.w, sz.h, p, seed)

				r, ok := extract.Extract(marked, sz.w, sz.h, seed)
				if !ok {
					t.Fatal("Extract() found no payload")
				}
				if r.Payload != p {
					t.Errorf("payload = %v, want %v", r.Payload, p)
				}
				if r.Confidence <= 0.5 {
					t.Errorf("confidence = %.3f, want > 0.5 on an untouched image", r.Confidence)
				}
			})
		}
	}
}

// On 64x64 images of uniform random pixels the host signal outweighs the mark, so
// recovery is not guaranteed. A failed recovery must read as "not found" and never
// as a different payload.
func TestUniformNoiseImage(t *testing.T) {
	p := scenarioPayload()
	var recovered int
	for i := uint64(0); i < 20; i++ {
		seed := fmt.Sprintf("uniform-%d", i)
		marked := mark(t, testimg.Uniform(i, 64, 64), 64, 64, p, seed)
		a := extract.Analyze(marked, 64, 64, seed)
		if !a.Found() {
			continue
		}
		if a.Payload != p {
			t.Errorf("image %d: decoded %v, want %v or nothing", i, a.Payload, p)
		}
		recovered++
	}
	t.Logf("recovered %d/20 marks from uniform noise images", recovered)

	// Enough repetitions (1500 per bit at 1280x1280) outvote the host noise.
	const size = 1280
	marked := mark(t, testimg.Uniform(99, size, size), size, size, p, "uniform-large")
	r, ok := extract.Extract(marked, size, size, "uniform-large")
	if !ok || r.Payload != p {
		t.Errorf("Extract() on %dx%d noise = %v, %v", size, size, r, ok)
	}
}

func TestBoundaryPayload(t *testing.T) {
	tests := []struct {
		name string
		p    payload.Payload
	}{
		{"zero", payload.Payload{}},
		{"max", payload.Payload{
			Timestamp:   0xFFFFFFFF,
			IPv4:        [4]byte{255, 255, 255, 255},
			Fingerprint: [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			Platform:    255,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marked := mark(t, testimg.Smooth(9, 64, 64), 64, 64, tt.p, "boundary")
			r, ok := extract.Extract(marked, 64, 64, "boundary")
			if !ok {
				t.Fatal("Extract() found no payload")
			}
			if r.Payload != tt.p {
				t.Errorf("payload = %v, want %v", r.Payload, tt.p)
			}
		})
	}
}

func TestWrongSeed(t *testing.T) {
	marked := mark(t, testimg.Smooth(11, 64, 64), 64, 64, scenarioPayload(), "img-001")

	decoded := 0
	for i := 0; i < 100; i++ {
		seed := fmt.Sprintf("wrong-%03d", i)
		if _, ok := extract.Extract(marked, 64, 64, seed); ok {
			decoded++
		}
		if extract.HasSignature(marked, 64, 64, seed) {
			t.Errorf("HasSignature() = true for seed %q", seed)
		}
	}
	if decoded != 0 {
		t.Errorf("%d of 100 wrong seeds decoded a payload", decoded)
	}
}

func TestDeterministic(t *testing.T) {
	marked := mark(t, testimg.Smooth(12, 96, 80), 96, 80, scenarioPayload(), "determinism")

	want := extract.Analyze(marked, 96, 80, "determinism", extract.WithWorkers(1))
	for _, workers := range []int{0, 1, 3, 16} {
		for run := 0; run < 3; run++ {
			got := extract.Analyze(marked, 96, 80, "determinism", extract.WithWorkers(workers))
			if got.Votes != want.Votes {
				t.Fatalf("workers=%d run=%d: votes differ", workers, run)
			}
			if got.Confidence != want.Confidence {
				t.Fatalf("workers=%d run=%d: confidence %v != %v", workers, run, got.Confidence, want.Confidence)
			}
			if got.Payload != want.Payload || got.Found() != want.Found() {
				t.Fatalf("workers=%d run=%d: payload differs", workers, run)
			}
		}
	}
}

func TestNoiseRobustness(t *testing.T) {
	p := scenarioPayload()
	for img := uint64(0); img < 5; img++ {
		t.Run(fmt.Sprint(img), func(t *testing.T) {
			marked := mark(t, testimg.Smooth(100+img, 64, 64), 64, 64, p, "noisy")
			noisy := testimg.Noise(marked, 4, img)

			r, ok := extract.Extract(noisy, 64, 64, "noisy")
			if !ok {
				t.Fatal("Extract() found no payload after +-4 noise")
			}
			if r.Payload != p {
				t.Errorf("payload = %v, want %v", r.Payload, p)
			}
			if r.Confidence <= 0.3 {
				t.Errorf("confidence = %.3f, want > 0.3", r.Confidence)
			}
		})
	}
}

func TestJPEGRecompression(t *testing.T) {
	p := scenarioPayload()
	marked := mark(t, testimg.Smooth(13, 128, 128), 128, 128, p, "jpeg")
	lossy := testimg.RecompressJPEG(t, marked, 128, 128, 95)

	r, ok := extract.Extract(lossy, 128, 128, "jpeg")
	if !ok {
		t.Fatal("Extract() found no payload after JPEG q95")
	}
	if r.Payload != p {
		t.Errorf("payload = %v, want %v", r.Payload, p)
	}
	if r.Confidence <= extract.DetectionThreshold {
		t.Errorf("confidence = %.3f", r.Confidence)
	}
}

func TestNoFalsePositive(t *testing.T) {
	for img := uint64(0); img < 50; img++ {
		pix := testimg.Smooth(1000+img, 64, 64)
		for _, seed := range []string{"img-001", "virgin"} {
			if _, ok := extract.Extract(pix, 64, 64, seed); ok {
				t.Errorf("image %d: payload found under %q in an unmarked image", img, seed)
			}
			if extract.HasSignature(pix, 64, 64, seed) {
				t.Errorf("image %d: HasSignature(%q) = true", img, seed)
			}
		}
	}
}

func TestAnalyzeUnmarked(t *testing.T) {
	a := extract.Analyze(testimg.Smooth(14, 64, 64), 64, 64, "img-001")
	if a.Found() {
		t.Fatal("Found() = true on an unmarked image")
	}
	if a.Err == nil {
		t.Fatal("Err = nil")
	}
	if a.Blocks != 64 {
		t.Errorf("Blocks = %d, want 64", a.Blocks)
	}
	if a.Redundancy != 64*15/256.0 {
		t.Errorf("Redundancy = %v", a.Redundancy)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		t.Errorf("Confidence = %v outside [0,1]", a.Confidence)
	}
}

func TestSealedRoundTrip(t *testing.T) {
	s, err := seal.New([]byte("0123456789abcdef-secret"))
	if err != nil {
		t.Fatal(err)
	}
	other, _ := seal.New([]byte("another secret of enough length"))

	p := scenarioPayload()
	marked := mark(t, testimg.Smooth(15, 64, 64), 64, 64, p, "sealed", embed.WithSealer(s))

	r, ok := extract.Extract(marked, 64, 64, "sealed", extract.WithSealer(s))
	if !ok {
		t.Fatal("Extract() with the sealer found no payload")
	}
	if r.Payload != p {
		t.Errorf("payload = %v, want %v", r.Payload, p)
	}

	// Structure survives without the secret, the fields do not.
	plain, ok := extract.Extract(marked, 64, 64, "sealed")
	if !ok {
		t.Fatal("sealed mark is not structurally valid without the secret")
	}
	if plain.Payload == p {
		t.Error("sealed fields readable without the secret")
	}
	if wrong, ok := extract.Extract(marked, 64, 64, "sealed", extract.WithSealer(other)); ok && wrong.Payload == p {
		t.Error("sealed fields readable with a different secret")
	}
}

func TestStrengthNormalisation(t *testing.T) {
	marked := mark(t, testimg.Smooth(16, 64, 64), 64, 64, scenarioPayload(), "s", embed.WithStrength(4))

	weak := extract.Analyze(marked, 64, 64, "s", extract.WithStrength(4))
	def := extract.Analyze(marked, 64, 64, "s")
	if !weak.Found() || !def.Found() {
		t.Fatal("payload not found")
	}
	if weak.Confidence <= def.Confidence {
		t.Errorf("confidence at matching strength %.3f <= default %.3f", weak.Confidence, def.Confidence)
	}
}

func TestMalformedInput(t *testing.T) {
	tests := []struct {
		name          string
		pix           []byte
		width, height int
		want          error
	}{
		{"nil", nil, 64, 64, extract.ErrInvalidBuffer},
		{"short", make([]byte, 100), 64, 64, extract.ErrInvalidBuffer},
		{"negative", make([]byte, 16), -2, -2, extract.ErrInvalidBuffer},
		{"tiny", make([]byte, 7*7*4), 7, 7, extract.ErrNoBlocks},
		{"empty", []byte{}, 0, 0, extract.ErrNoBlocks},
		{"zero width with pixels", make([]byte, 64), 0, 4, extract.ErrInvalidBuffer},
		{"overflowing width", nil, 1 << 61, 8, extract.ErrInvalidBuffer},
		{"overflowing height", []byte{}, 8, 1 << 61, extract.ErrInvalidBuffer},
		{"overflowing product", nil, 1 << 32, 1 << 31, extract.ErrInvalidBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := extract.Analyze(tt.pix, tt.width, tt.height, "x")
			if !errors.Is(a.Err, tt.want) {
				t.Errorf("Err = %v, want %v", a.Err, tt.want)
			}
			if _, ok := extract.Extract(tt.pix, tt.width, tt.height, "x"); ok {
				t.Error("Extract() reported a payload")
			}
			if extract.HasSignature(tt.pix, tt.width, tt.height, "x") {
				t.Error("HasSignature() = true")
			}
		})
	}
}

func TestFlatImage(t *testing.T) {
	pix := make([]byte, 64*64*4)
	for i := range pix {
		pix[i] = 128
	}
	a := extract.Analyze(pix, 64, 64, "flat")
	if a.Found() {
		t.Error("payload found in a flat image")
	}
	if a.Confidence > 1e-9 {
		t.Errorf("Confidence = %v, want ~0", a.Confidence)
	}
}

func BenchmarkExtract(b *testing.B) {
	pix := mark(b, testimg.Smooth(17, 512, 512), 512, 512, scenarioPayload(), "bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := extract.Extract(pix, 512, 512, "bench"); !ok {
			b.Fatal("no payload")
		}
	}
}
