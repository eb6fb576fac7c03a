package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/domain"

	"github.com/xuri/excelize/v2"
)

const orderExportSheet = "Orders"

// OrderExportHeader 订单导出表头
var OrderExportHeader = []string{
	"Order Number",
	"Created At",
	"Customer ID",
	"Status",
	"Payment Status",
	"Payment Method",
	"Items",
	"Subtotal",
	"Shipping Cost",
	"Discount",
	"Total",
	"City",
	"State",
	"Estimated Delivery",
	"Delivered At",
}

var orderExportWidths = []float64{16, 20, 38, 12, 15, 15, 8, 12, 14, 12, 12, 20, 8, 20, 20}

// GenerateOrderExport 生成订单导出 Excel 文件；orders 为空时只生成表头
func GenerateOrderExport(orders []*domain.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(orderExportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	// 金额列两位小数
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	for col, header := range OrderExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(orderExportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(orderExportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(orderExportSheet, name, name, orderExportWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, o := range orders {
		row := i + 2 // 第1行是表头
		values := orderRow(o)
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(orderExportSheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
		first, _ := excelize.CoordinatesToCellName(8, row)
		last, _ := excelize.CoordinatesToCellName(11, row)
		if err := f.SetCellStyle(orderExportSheet, first, last, moneyStyle); err != nil {
			return nil, fmt.Errorf("failed to set money style: %w", err)
		}
	}

	if err := f.SetPanes(orderExportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header row: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func orderRow(o *domain.Order) []any {
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	return []any{
		o.OrderNumber,
		formatExportTime(&o.CreatedAt),
		o.UserID,
		string(o.Status),
		string(o.PaymentStatus),
		string(o.PaymentMethod),
		items,
		o.Subtotal.InexactFloat64(),
		o.ShippingCost.InexactFloat64(),
		o.Discount.InexactFloat64(),
		o.Total.InexactFloat64(),
		o.DeliveryAddress.City,
		o.DeliveryAddress.State,
		formatExportTime(o.EstimatedDeliveryDate),
		formatExportTime(o.ActualDeliveryDate),
	}
}

func formatExportTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
