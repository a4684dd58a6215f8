// Package dal importa todos los adapters para auto-registro.
// Importar este paquete en main para habilitar todos los drivers.
//
// Uso:
//
//	import _ "github.com/dropDatabas3/questions/internal/store/adapters/dal"
package dal

import (
	_ "github.com/dropDatabas3/questions/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/questions/internal/store/adapters/pg"
)
