package catalog

import "github.com/roach88/pamperito/internal/domain"

// Seed is the built-in catalog used when neither the database nor a
// catalog file provides products.
func Seed() domain.Catalog {
	p := domain.Price
	return domain.Catalog{Products: []domain.Product{
		{ID: "lenia_10kg", Label: "Leña - bolsa 10kg", Unit: "bolsa", Section: "Leñas",
			Description: "Ideal para uso diario.",
			Pricing:     domain.Pricing{Base: p(6000), Mid: p(5000), Top: p(4000)}},
		{ID: "lenia_20kg", Label: "Leña - bolsa 20kg", Unit: "bolsa", Section: "Leñas",
			Description: "Más cantidad por bolsa.",
			Pricing:     domain.Pricing{Base: p(10000), Mid: p(9000), Top: p(7000)}},
		{ID: "carbon_3kg", Label: "Carbón - bolsa 3kg", Unit: "bolsa", Section: "Carbones",
			Description: "Para algo rápido y chico.",
			Pricing:     domain.Pricing{Base: p(3000), Mid: p(2700), Top: p(2400)}},
		{ID: "carbon_4kg", Label: "Carbón - bolsa 4kg", Unit: "bolsa", Section: "Carbones",
			Description: "Un poco más de fuego.",
			Pricing:     domain.Pricing{Base: p(4000), Mid: p(3700), Top: p(3000)}},
		{ID: "carbon_5kg", Label: "Carbón - bolsa 5kg", Unit: "bolsa", Section: "Carbones",
			Description: "El tamaño clásico del asado.",
			Pricing:     domain.Pricing{Base: p(5000), Mid: p(4700), Top: p(3500)}},
		{ID: "carbon_10kg", Label: "Carbón - bolsa 10kg", Unit: "bolsa", Section: "Carbones",
			Description: "Para varias comidas o eventos.",
			Pricing:     domain.Pricing{Base: p(10000), Mid: p(8500), Top: p(7000)}},
		{ID: "pack_alamo", Label: "Pack Álamo x unidad", Unit: "unidad", Section: "Otros",
			Description: "Leña más suave para complementar.",
			Pricing:     domain.Pricing{Base: p(1500), Mid: p(1300), Top: p(1100)}},
		{ID: "pastilla_encendido", Label: "Pastilla de encendido x unidad", Unit: "unidad", Section: "Otros",
			Description: "Por unidad, para arrancar el fuego fácil.",
			Pricing:     domain.Pricing{Base: p(150), Mid: p(130), Top: p(100)}},
	}}
}
