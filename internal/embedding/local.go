package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
)

// localDim is the output width of both local model artifacts (spec
// §4.10).
const localDim = 768

// LocalConfig configures the in-process provider.
type LocalConfig struct {
	SemanticModelPath    string
	CodeModelPath        string
	SemanticTokenizerDir string
	CodeTokenizerDir     string
	UseGPU               bool
	MaxBatchLength       int
}

// model bundles one ONNX session with its tokenizer, lazily
// initialized behind a one-shot cell.
type model struct {
	once      sync.Once
	initErr   error
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
	modelPath string
	tokDir    string
	useGPU    bool
}

func (m *model) ensureInit() error {
	m.once.Do(func() {
		tok, err := tokenizers.FromFile(m.tokDir)
		if err != nil {
			m.initErr = fmt.Errorf("embedding: load tokenizer %s: %w", m.tokDir, err)
			return
		}
		opts, err := ort.NewSessionOptions()
		if err != nil {
			m.initErr = fmt.Errorf("embedding: session options: %w", err)
			return
		}
		defer opts.Destroy()
		if m.useGPU {
			_ = opts.AppendExecutionProviderCUDA()
		}
		session, err := ort.NewDynamicAdvancedSession(m.modelPath,
			[]string{"input_ids", "attention_mask"}, []string{"last_hidden_state"}, opts)
		if err != nil {
			m.initErr = fmt.Errorf("embedding: load onnx model %s: %w", m.modelPath, err)
			return
		}
		m.session = session
		m.tokenizer = tok
	})
	return m.initErr
}

// LocalProvider runs both model artifacts in-process via onnxruntime.
// Because local inference contends for a single compute context, the
// caller must not invoke EncodeSemantic and EncodeCode concurrently
// (spec §4.10) — inferMu enforces that serialization.
type LocalProvider struct {
	cfg      LocalConfig
	semantic *model
	code     *model
	inferMu  sync.Mutex
}

// NewLocalProvider constructs a LocalProvider. Model artifacts are not
// loaded until the first Warmup or Encode* call.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	if cfg.MaxBatchLength == 0 {
		cfg.MaxBatchLength = 256
	}
	return &LocalProvider{
		cfg: cfg,
		semantic: &model{
			modelPath: cfg.SemanticModelPath,
			tokDir:    cfg.SemanticTokenizerDir,
			useGPU:    cfg.UseGPU,
		},
		code: &model{
			modelPath: cfg.CodeModelPath,
			tokDir:    cfg.CodeTokenizerDir,
			useGPU:    cfg.UseGPU,
		},
	}
}

func (p *LocalProvider) encodeWith(m *model, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := m.ensureInit(); err != nil {
		return nil, err
	}

	p.inferMu.Lock()
	defer p.inferMu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		enc := m.tokenizer.Encode(text, false)
		ids := make([]int64, len(enc.IDs))
		mask := make([]int64, len(enc.IDs))
		for j, id := range enc.IDs {
			ids[j] = int64(id)
			mask[j] = 1
		}
		if len(ids) > p.cfg.MaxBatchLength {
			ids = ids[:p.cfg.MaxBatchLength]
			mask = mask[:p.cfg.MaxBatchLength]
		}

		idsTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), ids)
		if err != nil {
			return nil, fmt.Errorf("embedding: build input_ids tensor: %w", err)
		}
		maskTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(mask))), mask)
		if err != nil {
			idsTensor.Destroy()
			return nil, fmt.Errorf("embedding: build attention_mask tensor: %w", err)
		}

		hidden, err := runAndMeanPool(m.session, idsTensor, maskTensor, len(ids))
		idsTensor.Destroy()
		maskTensor.Destroy()
		if err != nil {
			return nil, err
		}
		out[i] = l2Normalize(hidden)
	}
	return out, nil
}

// runAndMeanPool runs the ONNX forward pass and mean-pools the
// last_hidden_state output over the attention mask (spec §4.10).
func runAndMeanPool(session *ort.DynamicAdvancedSession, idsTensor, maskTensor *ort.Tensor[int64], seqLen int) ([]float32, error) {
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(localDim)))
	if err != nil {
		return nil, fmt.Errorf("embedding: alloc output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := session.Run([]ort.Value{idsTensor, maskTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("embedding: onnx run: %w", err)
	}

	data := outputTensor.GetData()
	pooled := make([]float32, localDim)
	for t := 0; t < seqLen; t++ {
		base := t * localDim
		for d := 0; d < localDim; d++ {
			pooled[d] += data[base+d]
		}
	}
	if seqLen > 0 {
		for d := range pooled {
			pooled[d] /= float32(seqLen)
		}
	}
	return pooled, nil
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// EncodeSemantic implements Provider.
func (p *LocalProvider) EncodeSemantic(_ context.Context, texts []string) ([][]float32, error) {
	return p.encodeWith(p.semantic, texts)
}

// EncodeCode implements Provider.
func (p *LocalProvider) EncodeCode(_ context.Context, texts []string) ([][]float32, error) {
	return p.encodeWith(p.code, texts)
}

// CheckStatus reports whether both model artifacts have initialized
// successfully.
func (p *LocalProvider) CheckStatus(context.Context) (Status, error) {
	device := "cpu"
	if p.cfg.UseGPU {
		device = "gpu"
	}
	semErr := p.semantic.ensureInit()
	codeErr := p.code.ensureInit()
	status := Status{
		SemanticOK: semErr == nil,
		CodeOK:     codeErr == nil,
		Device:     device,
	}
	status.Available = status.SemanticOK && status.CodeOK
	if semErr != nil {
		status.Error = semErr.Error()
	} else if codeErr != nil {
		status.Error = codeErr.Error()
	}
	return status, nil
}

// Warmup eagerly initializes both model artifacts so the first real
// query doesn't pay model-load latency (spec §4.10: "preload is a
// collaborator entry point").
func (p *LocalProvider) Warmup(context.Context) error {
	if err := p.semantic.ensureInit(); err != nil {
		return err
	}
	return p.code.ensureInit()
}

// EmbeddingDim implements Provider.
func (p *LocalProvider) EmbeddingDim() int { return localDim }

// ProviderType implements Provider.
func (p *LocalProvider) ProviderType() ProviderType { return Local }
