// Package seed carga un catálogo inicial (ítems, ubicaciones y stock de apertura)
// desde un CSV. Los archivos exportados de sistemas viejos suelen venir en ISO-8859-1.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Tipos de fila admitidos en la primera columna.
const (
	KindItem     = "item"     // item,sku,nombre,costo_unitario
	KindLocation = "location" // location,nombre
	KindStock    = "stock"    // stock,sku,ubicacion,cantidad
)

// OpeningBatch número de lote del stock de apertura.
const OpeningBatch = "OPENING"

// ItemRow ítem a crear.
type ItemRow struct {
	SKU      string
	Name     string
	UnitCost decimal.Decimal
}

// StockRow stock de apertura de un ítem en una ubicación (por nombre).
type StockRow struct {
	SKU      string
	Location string
	Quantity int64
}

// Catalog contenido parseado del CSV.
type Catalog struct {
	Items     []ItemRow
	Locations []string
	Stock     []StockRow
}

// ParseCatalog lee el CSV. Líneas vacías y las que empiezan por '#' se ignoran.
// Con latin1=true el contenido se decodifica desde ISO-8859-1.
func ParseCatalog(r io.Reader, latin1 bool) (*Catalog, error) {
	if latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cat := &Catalog{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("leer csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if err := cat.add(rec); err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
	}
	return cat, nil
}

func (c *Catalog) add(rec []string) error {
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	switch strings.ToLower(rec[0]) {
	case KindItem:
		if len(rec) < 3 {
			return fmt.Errorf("%w: item requiere sku y nombre", domain.ErrInvalidArgument)
		}
		cost := decimal.Zero
		if len(rec) > 3 && rec[3] != "" {
			d, err := decimal.NewFromString(strings.ReplaceAll(rec[3], ",", "."))
			if err != nil {
				return fmt.Errorf("%w: costo %q", domain.ErrInvalidArgument, rec[3])
			}
			cost = d
		}
		c.Items = append(c.Items, ItemRow{SKU: rec[1], Name: rec[2], UnitCost: cost})
	case KindLocation:
		if len(rec) < 2 || rec[1] == "" {
			return fmt.Errorf("%w: location requiere nombre", domain.ErrInvalidArgument)
		}
		c.Locations = append(c.Locations, rec[1])
	case KindStock:
		if len(rec) < 4 {
			return fmt.Errorf("%w: stock requiere sku, ubicación y cantidad", domain.ErrInvalidArgument)
		}
		qty, err := strconv.ParseInt(rec[3], 10, 64)
		if err != nil || qty <= 0 {
			return fmt.Errorf("%w: cantidad %q", domain.ErrInvalidArgument, rec[3])
		}
		c.Stock = append(c.Stock, StockRow{SKU: rec[1], Location: rec[2], Quantity: qty})
	default:
		return fmt.Errorf("%w: tipo de fila %q", domain.ErrInvalidArgument, rec[0])
	}
	return nil
}

// ItemCreator crea ítems del catálogo.
type ItemCreator interface {
	Create(ctx context.Context, in dto.CreateItemRequest) (*dto.ItemResponse, error)
}

// LocationCreator crea ubicaciones.
type LocationCreator interface {
	Create(ctx context.Context, in dto.CreateLocationRequest) (*dto.LocationResponse, error)
}

// Receiver registra recepciones en el ledger.
type Receiver interface {
	Receive(ctx context.Context, in inventory.ReceiveInput) error
}

// Result resumen de la carga.
type Result struct {
	Items     int
	Locations int
	Receipts  int
}

// Load crea ítems y ubicaciones y registra el stock de apertura como recepciones
// en un lote "OPENING" sin vencimiento. Se detiene en el primer error.
func Load(ctx context.Context, items ItemCreator, locations LocationCreator, ledger Receiver, cat *Catalog) (Result, error) {
	var res Result
	opening := OpeningBatch
	skus := make(map[string]string, len(cat.Items))
	for _, it := range cat.Items {
		out, err := items.Create(ctx, dto.CreateItemRequest{SKU: it.SKU, Name: it.Name, UnitCost: it.UnitCost})
		if err != nil {
			return res, fmt.Errorf("item %s: %w", it.SKU, err)
		}
		skus[it.SKU] = out.ID
		res.Items++
	}
	locs := make(map[string]string, len(cat.Locations))
	for _, name := range cat.Locations {
		out, err := locations.Create(ctx, dto.CreateLocationRequest{Name: name})
		if err != nil {
			return res, fmt.Errorf("location %s: %w", name, err)
		}
		locs[name] = out.ID
		res.Locations++
	}
	for _, st := range cat.Stock {
		itemID, ok := skus[st.SKU]
		if !ok {
			return res, fmt.Errorf("%w: sku %s no está en el catálogo", domain.ErrNotFound, st.SKU)
		}
		locID, ok := locs[st.Location]
		if !ok {
			return res, fmt.Errorf("%w: ubicación %s no está en el catálogo", domain.ErrNotFound, st.Location)
		}
		err := ledger.Receive(ctx, inventory.ReceiveInput{
			ItemID:      itemID,
			LocationID:  locID,
			Quantity:    st.Quantity,
			BatchNumber: &opening,
			Actor:       "seed",
		})
		if err != nil {
			return res, fmt.Errorf("stock %s@%s: %w", st.SKU, st.Location, err)
		}
		res.Receipts++
	}
	return res, nil
}
