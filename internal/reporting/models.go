// Package reporting reads reference data from the MySQL reporting database.
package reporting

// VenioOrder maps a NetSuite sales order to its order-entry (Venio) number.
type VenioOrder struct {
	NetsuiteID string `gorm:"column:netsuite_id;primaryKey" json:"netsuite_id"`
	SONumber   string `gorm:"column:so_number" json:"so_number"`
}

func (VenioOrder) TableName() string { return "venio_orders" }

// Location is a NetSuite location mirrored into reporting.
type Location struct {
	ID   string `gorm:"column:id;primaryKey" json:"id"`
	Name string `gorm:"column:name" json:"name"`
}

func (Location) TableName() string { return "locations" }

// Item is an inventory item with its display unit.
type Item struct {
	ID    string `gorm:"column:id;primaryKey" json:"id"`
	Name  string `gorm:"column:name" json:"name"`
	Units string `gorm:"column:units" json:"units"`
}

func (Item) TableName() string { return "items" }

// Condition is a payment/sales condition selectable on an order.
type Condition struct {
	ID   string `gorm:"column:id;primaryKey" json:"id"`
	Name string `gorm:"column:name" json:"name"`
}

func (Condition) TableName() string { return "so_conditions" }
