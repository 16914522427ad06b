package tronic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/partscope/partscope/pkg/strategy"
	"github.com/partscope/partscope/pkg/suppliers"
)

const productPage = `<html><body><ul class="products">
<li class="product"><code>NE555P</code><h2>Timer IC NE555P</h2><span class="price">Rs. 120</span></li>
<li class="product"><code>LM358N</code><h2>Op-amp LM358N</h2><span class="price">Rs. 90</span></li>
<li class="product"><code>BC547B</code><h2>NPN transistor BC547B</h2><span class="price">Rs. 15</span></li>
</ul></body></html>`

func TestScrapeThroughWorker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(productPage))
	}))
	defer ts.Close()

	s := New()
	defer s.Close()

	st := strategy.Manual(SupplierID, ts.URL+"/?s={query}", "ul.products li.product", strategy.FieldSelectors{
		PartNumber:  "code",
		Description: "h2",
		Price:       "span.price",
	})

	got, err := s.Scrape(context.Background(), "555", st, suppliers.Options{})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].PartNumber != "NE555P" || got[0].Currency != "LKR" {
		t.Errorf("first record = %+v", got[0])
	}
}

func TestCloseStopsWorker(t *testing.T) {
	s := New()
	s.Close()
	s.Close() // second close is a no-op, not a panic

	if _, err := s.Scrape(context.Background(), "555", defaultStrategy, suppliers.Options{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Scrape after Close: err = %v, want ErrClosed", err)
	}
}
