package domain

// EstadosInegi returns the 32 entidades federativas with their claves INEGI.
// The clave doubles as the wire identifier peers exchange, so the list is
// seeded verbatim at startup.
func EstadosInegi() []Estado {
	return []Estado{
		{Clave: "01", Nombre: "Aguascalientes"},
		{Clave: "02", Nombre: "Baja California"},
		{Clave: "03", Nombre: "Baja California Sur"},
		{Clave: "04", Nombre: "Campeche"},
		{Clave: "05", Nombre: "Coahuila de Zaragoza"},
		{Clave: "06", Nombre: "Colima"},
		{Clave: "07", Nombre: "Chiapas"},
		{Clave: "08", Nombre: "Chihuahua"},
		{Clave: "09", Nombre: "Ciudad de México"},
		{Clave: "10", Nombre: "Durango"},
		{Clave: "11", Nombre: "Guanajuato"},
		{Clave: "12", Nombre: "Guerrero"},
		{Clave: "13", Nombre: "Hidalgo"},
		{Clave: "14", Nombre: "Jalisco"},
		{Clave: "15", Nombre: "México"},
		{Clave: "16", Nombre: "Michoacán de Ocampo"},
		{Clave: "17", Nombre: "Morelos"},
		{Clave: "18", Nombre: "Nayarit"},
		{Clave: "19", Nombre: "Nuevo León"},
		{Clave: "20", Nombre: "Oaxaca"},
		{Clave: "21", Nombre: "Puebla"},
		{Clave: "22", Nombre: "Querétaro"},
		{Clave: "23", Nombre: "Quintana Roo"},
		{Clave: "24", Nombre: "San Luis Potosí"},
		{Clave: "25", Nombre: "Sinaloa"},
		{Clave: "26", Nombre: "Sonora"},
		{Clave: "27", Nombre: "Tabasco"},
		{Clave: "28", Nombre: "Tamaulipas"},
		{Clave: "29", Nombre: "Tlaxcala"},
		{Clave: "30", Nombre: "Veracruz de Ignacio de la Llave"},
		{Clave: "31", Nombre: "Yucatán"},
		{Clave: "32", Nombre: "Zacatecas"},
	}
}

// MateriasIniciales returns the subject-matter claves a fresh installation
// accepts. Operators can extend the table afterwards; the claves here are
// the ones the interstate catalog defines.
func MateriasIniciales() []Materia {
	return []Materia{
		{Clave: "CIV", Nombre: "Civil"},
		{Clave: "FAM", Nombre: "Familiar"},
		{Clave: "MER", Nombre: "Mercantil"},
		{Clave: "LAB", Nombre: "Laboral"},
		{Clave: "PEN", Nombre: "Penal"},
	}
}
