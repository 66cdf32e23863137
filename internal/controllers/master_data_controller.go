package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delivery_backoffice/internal/config"
	"delivery_backoffice/internal/geo"
	"delivery_backoffice/internal/models"
)

func ListProvinces(c *gin.Context) {
	var provinces []models.Province
	if err := config.DB.Order("code").Find(&provinces).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing provinces: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": provinces})
}

func ListAreas(c *gin.Context) {
	q := config.DB.Preload("Province").Preload("AreaGroup").Order("name")
	if provinceID, ok := queryUint(c, "province_id"); !ok {
		return
	} else if provinceID != 0 {
		q = q.Where("province_id = ?", provinceID)
	}
	if groupID, ok := queryUint(c, "area_group_id"); !ok {
		return
	} else if groupID != 0 {
		q = q.Where("area_group_id = ?", groupID)
	}

	var areas []models.Area
	if err := q.Find(&areas).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing areas: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": areas})
}

func ListAreaGroups(c *gin.Context) {
	var groups []models.AreaGroup
	if err := config.DB.Preload("Areas").Order("name").Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing area groups: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

// clientResponse exposes the stored WKB location as GeoJSON.
type clientResponse struct {
	models.Client
	Location json.RawMessage `json:"location,omitempty"`
}

func newClientResponse(client models.Client) clientResponse {
	out := clientResponse{Client: client}
	if len(client.Location) == 0 {
		return out
	}
	gj, err := geo.ToGeoJSON(client.Location)
	if err != nil {
		logrus.WithError(err).WithField("client_id", client.ID).Warn("Client location is not a valid point")
		return out
	}
	out.Location = json.RawMessage(gj)
	return out
}

func ListClients(c *gin.Context) {
	q := config.DB.Preload("Area").Order("code")
	if areaID, ok := queryUint(c, "area_id"); !ok {
		return
	} else if areaID != 0 {
		q = q.Where("area_id = ?", areaID)
	}

	var clients []models.Client
	if err := q.Find(&clients).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing clients: " + err.Error()})
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, cl := range clients {
		out = append(out, newClientResponse(cl))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func GetClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var client models.Client
	if err := config.DB.Preload("Area").Preload("Area.AreaGroup").First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newClientResponse(client)})
}

func ListProducts(c *gin.Context) {
	var products []models.Product
	if err := config.DB.Order("sku").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing products: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

// ListVehicles lists the fleet; ?in_service=true limits it to usable vehicles.
func ListVehicles(c *gin.Context) {
	q := config.DB.Order("type, plate_no")
	if c.Query("in_service") == "true" {
		q = q.Where("in_service = ?", true)
	}
	var vehicles []models.Vehicle
	if err := q.Find(&vehicles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing vehicles: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": vehicles})
}
