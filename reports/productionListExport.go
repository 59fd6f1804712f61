package reports

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/printforge/printflow_backend/models"
)

// WriteProductionListExcel renders one production list as a workbook.
func WriteProductionListExcel(list *models.ProductionList) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Production List"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Rank", "Article", "Name", "Group", "Type", "Priority", "Current Stock", "Quantity"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for i, item := range list.Items {
		row := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), item.Rank)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), item.Article)
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), item.Name)
		f.SetCellValue(sheet, "D"+fmt.Sprint(row), item.GroupName)
		f.SetCellValue(sheet, "E"+fmt.Sprint(row), string(item.ProductType))
		f.SetCellValue(sheet, "F"+fmt.Sprint(row), item.Priority)
		f.SetCellValue(sheet, "G"+fmt.Sprint(row), item.CurrentStock.InexactFloat64())
		f.SetCellValue(sheet, "H"+fmt.Sprint(row), item.Quantity.InexactFloat64())
	}

	summaryRow := len(list.Items) + 3
	f.SetCellValue(sheet, "A"+fmt.Sprint(summaryRow), "Total items")
	f.SetCellValue(sheet, "B"+fmt.Sprint(summaryRow), list.TotalItems)
	f.SetCellValue(sheet, "A"+fmt.Sprint(summaryRow+1), "Total units")
	f.SetCellValue(sheet, "B"+fmt.Sprint(summaryRow+1), list.TotalUnits.InexactFloat64())

	return f, nil
}

// ExportProductionListHandler streams the latest production list as xlsx.
func ExportProductionListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := models.GetLatestProductionList(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if list == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no production list built yet"})
			return
		}

		f, err := WriteProductionListExcel(list)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		filename := fmt.Sprintf("production-list-%d.xlsx", list.ID)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}
