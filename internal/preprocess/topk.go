package preprocess

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
)

// Prediction is one ranked class.
type Prediction struct {
	Class       int
	Label       string
	Probability float32
}

// Softmax returns the normalized exponentials of logits.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	peak := logits[0]
	for _, v := range logits[1:] {
		peak = max(peak, v)
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - peak))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

// TopK returns the k most probable classes of one row of logits, best first.
// Ties keep the lower class index first. labels may be nil.
func TopK(logits []float32, k int, labels []string) []Prediction {
	probs := Softmax(logits)
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })

	k = min(k, len(order))
	preds := make([]Prediction, k)
	for i := 0; i < k; i++ {
		class := order[i]
		preds[i] = Prediction{Class: class, Probability: probs[class]}
		if class < len(labels) {
			preds[i].Label = labels[class]
		}
	}
	return preds
}

// ReadLabels reads one class label per line. Blank lines are kept so line
// numbers stay aligned with class indices.
func ReadLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// LoadLabels reads a label file.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer func() {
		_ = f.Close() // Read-only
	}()
	return ReadLabels(f)
}
