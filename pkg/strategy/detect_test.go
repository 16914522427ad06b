package strategy

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func productPage(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="products">`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<li class="product">
			<h3>LM%d58N Operational Amplifier</h3>
			<p class="description">Dual op-amp, DIP-8 package, general purpose</p>
			<span class="price">$0.%d2</span>
			<span class="stock">In stock: %d00</span>
			<a class="product-link" href="/product/lm%d58n">View</a>
		</li>`, i+3, i+1, i+5, i+3)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func TestDetectWellKnownLayout(t *testing.T) {
	st, err := Detect(productPage(5), "acme", "https://acme.example/search?q={query}", DetectOptions{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if st.Container != "ul.products li.product" {
		t.Errorf("container = %q", st.Container)
	}
	if st.Fields.Price != "span.price" {
		t.Errorf("price selector = %q", st.Fields.Price)
	}
	if st.Fields.Quantity != "span.stock" {
		t.Errorf("quantity selector = %q", st.Fields.Quantity)
	}
	if st.Fields.PurchaseLink == "" {
		t.Error("expected a purchase link selector")
	}
	if st.Confidence < 0.5 {
		t.Errorf("confidence = %.2f, want >= 0.5", st.Confidence)
	}
	if st.Manual {
		t.Error("auto-detected strategy must not be flagged manual")
	}
}

func TestDetectTooFewBlocks(t *testing.T) {
	_, err := Detect(productPage(2), "acme", "https://acme.example/search?q={query}", DetectOptions{})
	if !errors.Is(err, ErrDetectionFailed) {
		t.Fatalf("expected ErrDetectionFailed, got %v", err)
	}
}

func TestDetectSignatureFallback(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><div id="listing">`)
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, `<div class="result-row">
			<h2>STM32F10%dC8T6 microcontroller board</h2>
			<span class="price">Rs. 1,2%d0.00</span>
			<a href="/p/%d">buy</a>
		</div>`, i, i, i)
	}
	b.WriteString(`</div></body></html>`)

	st, err := Detect(b.String(), "tronic", "https://tronic.example/?s={query}", DetectOptions{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if st.Container != "div.result-row" {
		t.Errorf("container = %q", st.Container)
	}
	if st.Fields.Price != "span.price" {
		t.Errorf("price selector = %q", st.Fields.Price)
	}
}

func TestDetectConfidenceFloor(t *testing.T) {
	// Repeated blocks with no recognizable fields at all.
	var b strings.Builder
	b.WriteString(`<html><body>`)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, `<div class="nav-item">menu entry %d here</div>`, i)
	}
	b.WriteString(`</body></html>`)

	_, err := Detect(b.String(), "acme", "", DetectOptions{ConfidenceFloor: 0.9})
	if !errors.Is(err, ErrDetectionFailed) {
		t.Fatalf("expected ErrDetectionFailed, got %v", err)
	}
}

func TestManualStrategyConvention(t *testing.T) {
	st := Manual("acme", "https://acme.example/search?q={query}", "li.product", FieldSelectors{PartNumber: "h3"})
	if !st.Manual || st.Confidence != 1.0 {
		t.Errorf("manual strategy: manual=%v confidence=%v", st.Manual, st.Confidence)
	}
}
