package seed

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"delivery_backoffice/internal/geo"
	"delivery_backoffice/internal/models"
)

type Province struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type AreaGroup struct {
	Name     string  `yaml:"name"`
	BaseRate float64 `yaml:"base_rate"`
}

type Area struct {
	Name      string `yaml:"name"`
	Province  string `yaml:"province"`   // province code
	AreaGroup string `yaml:"area_group"` // area group name, optional
}

type RateSetting struct {
	Key    string  `yaml:"key"`
	Label  string  `yaml:"label"`
	Amount float64 `yaml:"amount"`
}

type Client struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Phone   string   `yaml:"phone"`
	Address string   `yaml:"address"`
	Area    string   `yaml:"area"` // area name
	Lat     *float64 `yaml:"lat"`
	Lng     *float64 `yaml:"lng"`
}

type Product struct {
	SKU    string  `yaml:"sku"`
	Name   string  `yaml:"name"`
	Unit   string  `yaml:"unit"`
	Price  float64 `yaml:"price"`
	Volume float64 `yaml:"volume"`
}

type Vehicle struct {
	PlateNo   string  `yaml:"plate_no"`
	Type      string  `yaml:"type"`
	Capacity  float64 `yaml:"capacity"`
	InService *bool   `yaml:"in_service"`
}

type MilestoneTemplate struct {
	Name             string  `yaml:"name"`
	Sequence         int     `yaml:"sequence"`
	StandardDuration float64 `yaml:"standard_duration"`
}

// File is the master data seed document.
type File struct {
	Provinces          []Province          `yaml:"provinces"`
	AreaGroups         []AreaGroup         `yaml:"area_groups"`
	Areas              []Area              `yaml:"areas"`
	RateSettings       []RateSetting       `yaml:"rate_settings"`
	Clients            []Client            `yaml:"clients"`
	Products           []Product           `yaml:"products"`
	Vehicles           []Vehicle           `yaml:"vehicles"`
	MilestoneTemplates []MilestoneTemplate `yaml:"milestone_templates"`
}

// Load reads a seed file from path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*File, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	return &file, nil
}

// Validate rejects records without a natural key.
func (f *File) Validate() error {
	for _, p := range f.Provinces {
		if p.Code == "" {
			return fmt.Errorf("province %q: code is required", p.Name)
		}
	}
	for _, g := range f.AreaGroups {
		if g.Name == "" {
			return fmt.Errorf("area group: name is required")
		}
	}
	for _, a := range f.Areas {
		if a.Name == "" {
			return fmt.Errorf("area: name is required")
		}
	}
	for _, c := range f.Clients {
		if c.Code == "" {
			return fmt.Errorf("client %q: code is required", c.Name)
		}
	}
	for _, p := range f.Products {
		if p.SKU == "" {
			return fmt.Errorf("product %q: sku is required", p.Name)
		}
	}
	for _, v := range f.Vehicles {
		if v.PlateNo == "" {
			return fmt.Errorf("vehicle: plate_no is required")
		}
	}
	for _, m := range f.MilestoneTemplates {
		if m.Sequence <= 0 {
			return fmt.Errorf("milestone template %q: sequence must be positive", m.Name)
		}
	}
	return nil
}

// Apply upserts every record of file by its natural key in one transaction.
// Rate amounts are only written when the row is first created so values
// edited through the API survive a restart.
func Apply(db *gorm.DB, file *File) error {
	if err := file.Validate(); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		provinces := map[string]models.Province{}
		for _, p := range file.Provinces {
			row := models.Province{}
			if err := tx.Where(models.Province{Code: p.Code}).
				Assign(models.Province{Name: p.Name}).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("province %s: %w", p.Code, err)
			}
			provinces[p.Code] = row
		}

		groups := map[string]models.AreaGroup{}
		for _, g := range file.AreaGroups {
			row := models.AreaGroup{}
			if err := tx.Where(models.AreaGroup{Name: g.Name}).
				Attrs(models.AreaGroup{BaseRate: g.BaseRate}).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("area group %s: %w", g.Name, err)
			}
			groups[g.Name] = row
		}

		areas := map[string]models.Area{}
		for _, a := range file.Areas {
			province, ok := provinces[a.Province]
			if !ok {
				return fmt.Errorf("area %s: unknown province %q", a.Name, a.Province)
			}
			var groupID *uint
			if a.AreaGroup != "" {
				g, ok := groups[a.AreaGroup]
				if !ok {
					return fmt.Errorf("area %s: unknown area group %q", a.Name, a.AreaGroup)
				}
				groupID = &g.ID
			}
			row := models.Area{}
			if err := tx.Where(models.Area{Name: a.Name}).
				Assign(map[string]interface{}{"province_id": province.ID, "area_group_id": groupID}).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("area %s: %w", a.Name, err)
			}
			areas[a.Name] = row
		}

		for _, s := range file.RateSettings {
			if !models.IsAdditionalRateType(s.Key) {
				return fmt.Errorf("rate setting: unknown key %q", s.Key)
			}
			row := models.RateSetting{}
			if err := tx.Where(models.RateSetting{Key: s.Key}).
				Attrs(models.RateSetting{Label: s.Label, Amount: s.Amount}).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("rate setting %s: %w", s.Key, err)
			}
		}

		for _, c := range file.Clients {
			area, ok := areas[c.Area]
			if !ok {
				return fmt.Errorf("client %s: unknown area %q", c.Code, c.Area)
			}
			attrs := map[string]interface{}{
				"name":        c.Name,
				"phone":       c.Phone,
				"address":     c.Address,
				"province_id": area.ProvinceID,
				"area_id":     area.ID,
			}
			row := models.Client{}
			if err := tx.Where(models.Client{Code: c.Code}).Assign(attrs).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("client %s: %w", c.Code, err)
			}
			if c.Lat != nil && c.Lng != nil {
				loc, err := geo.EncodePoint(geo.Point{Lat: *c.Lat, Lng: *c.Lng})
				if err != nil {
					return fmt.Errorf("client %s: %w", c.Code, err)
				}
				// Assign drops byte slices, so the WKB point is written on its own.
				if err := tx.Model(&row).Update("location", loc).Error; err != nil {
					return fmt.Errorf("client %s: %w", c.Code, err)
				}
			}
		}

		for _, p := range file.Products {
			row := models.Product{}
			if err := tx.Where(models.Product{SKU: p.SKU}).
				Assign(map[string]interface{}{"name": p.Name, "unit": p.Unit, "price": p.Price, "volume": p.Volume}).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("product %s: %w", p.SKU, err)
			}
		}

		for _, v := range file.Vehicles {
			if v.Type != models.VehicleSmall && v.Type != models.VehicleLarge {
				return fmt.Errorf("vehicle %s: type must be small or large", v.PlateNo)
			}
			inService := true
			if v.InService != nil {
				inService = *v.InService
			}
			row := models.Vehicle{}
			if err := tx.Where(models.Vehicle{PlateNo: v.PlateNo}).
				Assign(map[string]interface{}{"type": v.Type, "capacity": v.Capacity}).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("vehicle %s: %w", v.PlateNo, err)
			}
			// in_service has a column default, so false must be written explicitly.
			if err := tx.Model(&row).Update("in_service", inService).Error; err != nil {
				return fmt.Errorf("vehicle %s: %w", v.PlateNo, err)
			}
		}

		for _, m := range file.MilestoneTemplates {
			row := models.DeliveryMilestoneTemplate{}
			if err := tx.Where(models.DeliveryMilestoneTemplate{Sequence: m.Sequence}).
				Assign(map[string]interface{}{"name": m.Name, "standard_duration": m.StandardDuration}).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("milestone template %d: %w", m.Sequence, err)
			}
		}

		logrus.WithFields(logrus.Fields{
			"provinces":  len(file.Provinces),
			"areas":      len(file.Areas),
			"clients":    len(file.Clients),
			"products":   len(file.Products),
			"vehicles":   len(file.Vehicles),
			"milestones": len(file.MilestoneTemplates),
		}).Info("Master data seeded")
		return nil
	})
}
