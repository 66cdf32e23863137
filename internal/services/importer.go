package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"delivery_backoffice/internal/models"
)

// Import sheet columns, in order. The first row is a header.
const (
	colPO = iota
	colClientCode
	colDeliveryDate
	colSKU
	colQuantity
	colAdditionalRateType
	importColumns
)

type ImportRowError struct {
	Row   int    `json:"row"`
	PO    string `json:"po_number,omitempty"`
	Error string `json:"error"`
}

type ImportResult struct {
	Created []string         `json:"created"`
	Errors  []ImportRowError `json:"errors"`
}

type pendingImport struct {
	firstRow int
	input    OrderInput
	failed   bool
}

// Importer creates delivery orders from an xlsx sheet.
type Importer struct {
	orders *OrderService
}

func NewImporter(orders *OrderService) *Importer {
	return &Importer{orders: orders}
}

// Import reads the first sheet of r. Rows sharing a PO form one order; an
// order with any bad row is skipped and the rest are created.
func (im *Importer) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	res := ImportResult{Created: []string{}, Errors: []ImportRowError{}}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return res, fmt.Errorf("%w: not a readable xlsx file: %v", ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return res, fmt.Errorf("%w: workbook has no sheets", ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return res, err
	}

	lookup := newImportLookup(im.orders)
	var order []string
	byPO := map[string]*pendingImport{}

	for i, row := range rows {
		rowNo := i + 1
		if i == 0 || isBlankRow(row) {
			continue
		}
		cells := make([]string, importColumns)
		for c := 0; c < importColumns && c < len(row); c++ {
			cells[c] = strings.TrimSpace(row[c])
		}
		po := cells[colPO]
		if po == "" {
			res.Errors = append(res.Errors, ImportRowError{Row: rowNo, Error: "missing PO number"})
			continue
		}
		p, ok := byPO[po]
		if !ok {
			p = &pendingImport{firstRow: rowNo, input: OrderInput{PONumber: po}}
			byPO[po] = p
			order = append(order, po)
		}
		if err := lookup.fill(ctx, &p.input, cells, p.firstRow == rowNo); err != nil {
			p.failed = true
			res.Errors = append(res.Errors, ImportRowError{Row: rowNo, PO: po, Error: err.Error()})
		}
	}

	for _, po := range order {
		p := byPO[po]
		if p.failed {
			continue
		}
		created, err := im.orders.Create(ctx, p.input, "import")
		if err != nil {
			res.Errors = append(res.Errors, ImportRowError{Row: p.firstRow, PO: po, Error: err.Error()})
			continue
		}
		res.Created = append(res.Created, created.DONumber)
	}
	logrus.WithFields(logrus.Fields{"created": len(res.Created), "errors": len(res.Errors)}).Info("Order import finished")
	return res, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// importLookup resolves client codes and SKUs once per import.
type importLookup struct {
	orders   *OrderService
	clients  map[string]uint
	products map[string]uint
}

func newImportLookup(orders *OrderService) *importLookup {
	return &importLookup{orders: orders, clients: map[string]uint{}, products: map[string]uint{}}
}

func (l *importLookup) fill(ctx context.Context, in *OrderInput, cells []string, first bool) error {
	clientID, err := l.client(ctx, cells[colClientCode])
	if err != nil {
		return err
	}
	deliveryDate, err := time.Parse("2006-01-02", cells[colDeliveryDate])
	if err != nil {
		return fmt.Errorf("delivery date %q must be YYYY-MM-DD", cells[colDeliveryDate])
	}
	rateType := cells[colAdditionalRateType]
	if rateType != "" && !models.IsAdditionalRateType(rateType) {
		return fmt.Errorf("%v: %q", ErrUnknownRateType, rateType)
	}
	if first {
		in.ClientID = clientID
		in.DeliveryDate = deliveryDate
		in.AdditionalRateType = rateType
	} else if in.ClientID != clientID || !in.DeliveryDate.Equal(deliveryDate) {
		return fmt.Errorf("client and delivery date must match the first row of the PO")
	} else if rateType != "" && rateType != in.AdditionalRateType {
		// A blank rate type on a follow-up row inherits the first row's.
		return fmt.Errorf("additional rate type %q must match the first row of the PO (%q)", rateType, in.AdditionalRateType)
	}

	productID, err := l.product(ctx, cells[colSKU])
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(cells[colQuantity])
	if err != nil || qty <= 0 {
		return fmt.Errorf("quantity %q must be a positive integer", cells[colQuantity])
	}
	in.Items = append(in.Items, OrderItemInput{ProductID: productID, Quantity: qty})
	return nil
}

func (l *importLookup) client(ctx context.Context, code string) (uint, error) {
	if id, ok := l.clients[code]; ok {
		return id, nil
	}
	var c models.Client
	if err := l.orders.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return 0, fmt.Errorf("unknown client code %q", code)
	}
	l.clients[code] = c.ID
	return c.ID, nil
}

func (l *importLookup) product(ctx context.Context, sku string) (uint, error) {
	if id, ok := l.products[sku]; ok {
		return id, nil
	}
	var p models.Product
	if err := l.orders.db.WithContext(ctx).Where("sku = ?", sku).First(&p).Error; err != nil {
		return 0, fmt.Errorf("unknown SKU %q", sku)
	}
	l.products[sku] = p.ID
	return p.ID, nil
}
