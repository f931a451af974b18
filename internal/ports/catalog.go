package ports

import "devkit-installer/internal/types"

type CatalogPort interface {
	LoadCatalog(path string) (types.Catalog, error)
}
