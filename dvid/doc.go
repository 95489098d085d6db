/*
	Package dvid provides types, constants, and functions that have no other dependencies
	and can be used by all packages within dvidproxy.  This includes the cutout coordinate
	frame, the block grid partitioning, the dense voxel payload, the storage error
	taxonomy, configuration and logging.
*/
package dvid
